package bootstrap

import "context"

// Seeder loads reference data into an external system on startup.
type Seeder interface {
	Seed(ctx context.Context) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc func(ctx context.Context) error

// Seed executes the underlying function.
func (f SeederFunc) Seed(ctx context.Context) error {
	return f(ctx)
}

// RunSeeders executes seeders in order, stopping at the first error.
func RunSeeders(ctx context.Context, seeders ...Seeder) error {
	for _, s := range seeders {
		if s == nil {
			continue
		}
		if err := s.Seed(ctx); err != nil {
			return err
		}
	}
	return nil
}
