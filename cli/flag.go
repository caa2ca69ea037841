package cli

import "time"

// The flags below share the same fields. Name is the name used on the command
// line and EnvVar, when not empty, is the environment variable read when the
// flag is not provided. Value is the default value.

// StringFlag is a flag parsed as a string.
//
// - implements cli.Flag
type StringFlag struct {
	Name     string
	Usage    string
	EnvVar   string
	Required bool
	Value    string
}

// Flag implements cli.Flag.
func (StringFlag) Flag() {}

// StringSliceFlag is a flag that can be repeated. Each occurrence appends a
// string.
//
// - implements cli.Flag
type StringSliceFlag struct {
	Name     string
	Usage    string
	EnvVar   string
	Required bool
	Value    []string
}

// Flag implements cli.Flag.
func (StringSliceFlag) Flag() {}

// DurationFlag is a flag parsed as a duration, like "10s".
//
// - implements cli.Flag
type DurationFlag struct {
	Name     string
	Usage    string
	EnvVar   string
	Required bool
	Value    time.Duration
}

// Flag implements cli.Flag.
func (DurationFlag) Flag() {}

// IntFlag is a flag parsed as a signed integer.
//
// - implements cli.Flag
type IntFlag struct {
	Name     string
	Usage    string
	EnvVar   string
	Required bool
	Value    int
}

// Flag implements cli.Flag.
func (IntFlag) Flag() {}

// Uint64Flag is a flag parsed as an unsigned integer, like a round number.
//
// - implements cli.Flag
type Uint64Flag struct {
	Name     string
	Usage    string
	EnvVar   string
	Required bool
	Value    uint64
}

// Flag implements cli.Flag.
func (Uint64Flag) Flag() {}

// BoolFlag is a flag parsed as a boolean.
//
// - implements cli.Flag
type BoolFlag struct {
	Name     string
	Usage    string
	EnvVar   string
	Required bool
	Value    bool
}

// Flag implements cli.Flag.
func (BoolFlag) Flag() {}
