//go:build !linux

package edge

// Chip is a stub for non-linux platforms.
type Chip struct{}

// Sysfs is a stub for non-linux platforms.
type Sysfs struct{}

// Evdev is a stub for non-linux platforms.
type Evdev struct{}

// NewChip returns ErrNotSupported on non-linux platforms.
func NewChip(name string) (*Chip, error) { return nil, ErrNotSupported }

// NewSysfs returns ErrNotSupported on non-linux platforms.
func NewSysfs() (*Sysfs, error) { return nil, ErrNotSupported }

// NewEvdev returns ErrNotSupported on non-linux platforms.
func NewEvdev(path string) (*Evdev, error) { return nil, ErrNotSupported }

func (c *Chip) Watch(pin int, pull Pull, h Handler) (Subscription, error) {
	return nil, ErrNotSupported
}
func (c *Chip) Read(pin int) (int, error) { return 0, ErrNotSupported }
func (c *Chip) Close() error              { return nil }

func (s *Sysfs) Watch(pin int, pull Pull, h Handler) (Subscription, error) {
	return nil, ErrNotSupported
}
func (s *Sysfs) Read(pin int) (int, error) { return 0, ErrNotSupported }
func (s *Sysfs) Close() error              { return nil }

func (e *Evdev) Watch(pin int, pull Pull, h Handler) (Subscription, error) {
	return nil, ErrNotSupported
}
func (e *Evdev) Read(pin int) (int, error) { return 0, ErrNotSupported }
func (e *Evdev) Close() error              { return nil }
