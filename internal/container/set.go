package container

import "fmt"

// Set is a Step's view over its Containers: a name -> Container mapping.
type Set struct {
	containers map[string]Container
}

// NewSet builds a ContainerSet from named Containers.
func NewSet(containers ...Container) *Set {
	s := &Set{containers: make(map[string]Container, len(containers))}
	for _, c := range containers {
		s.containers[c.Name()] = c
	}
	return s
}

// Get looks up a Container by name.
func (s *Set) Get(name string) (Container, bool) {
	c, ok := s.containers[name]
	return c, ok
}

// Put registers (or replaces) a Container under its own Name().
func (s *Set) Put(c Container) {
	s.containers[c.Name()] = c
}

// Names returns the registered container names.
func (s *Set) Names() []string {
	out := make([]string, 0, len(s.containers))
	for n := range s.containers {
		out = append(out, n)
	}
	return out
}

// Clone returns a ContainerSet whose Containers are independent deep
// copies, used when the Runner copies a Step's outputs into the next
// Step's inputs (§4.5, §5).
func (s *Set) Clone() *Set {
	out := &Set{containers: make(map[string]Container, len(s.containers))}
	for name, c := range s.containers {
		out.containers[name] = c.Clone()
	}
	return out
}

// Close releases every Container's resources, continuing past the first
// error so that a failure in one Container never leaks another's handles;
// it returns the first error encountered, if any.
func (s *Set) Close() error {
	var firstErr error
	for _, c := range s.containers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing container %q: %w", c.Name(), err)
		}
	}
	return firstErr
}
