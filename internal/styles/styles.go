package styles

import (
	"os"

	"github.com/muesli/termenv"
)

var (
	stdout = termenv.NewOutput(os.Stdout)

	ERROR = func(s string) string {
		return stdout.String(s).
			Foreground(stdout.Color("9")).
			String()
	}
	// RESULT styles a predicted disease label
	RESULT = func(s string) string {
		return stdout.String(s).
			Foreground(stdout.Color("10")).
			Bold().
			String()
	}
	HEADING = func(s string) string {
		return stdout.String(s).
			Foreground(stdout.Color("11")).
			Bold().
			String()
	}
	// HINT styles secondary text such as timestamps and usage notes
	HINT = func(s string) string {
		return stdout.String(s).
			Foreground(stdout.Color("244")).
			String()
	}
)
