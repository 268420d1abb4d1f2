package cli

import (
	"strconv"

	"github.com/spf13/pflag"
)

func newFlagSet(f *recordFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.register(fs)
	return fs
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
