package backend

import "github.com/noisicaa-go/engine/internal/engineerr"

func unknownBackend(name string) error {
	return engineerr.InvalidOperation("unknown backend %q", name)
}

func unknownChannel(channel string) error {
	return engineerr.InvalidOperation("invalid channel %q", channel)
}
