package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// prompter handles interactive terminal prompts for init and users.
type prompter struct {
	in      io.Reader
	out     io.Writer
	scanner *bufio.Scanner
}

func defaultPrompter() *prompter {
	return &prompter{in: os.Stdin, out: os.Stdout}
}

func (p *prompter) scan() *bufio.Scanner {
	if p.scanner == nil {
		p.scanner = bufio.NewScanner(p.in)
	}
	return p.scanner
}

func (p *prompter) readLine() string {
	if p.scan().Scan() {
		return strings.TrimSpace(p.scan().Text())
	}
	return ""
}

// ask prints a question with a default value and reads one line. Returns
// the default if the user presses Enter without typing.
func (p *prompter) ask(question, defaultVal string) string {
	if defaultVal != "" {
		_, _ = fmt.Fprintf(p.out, "%s [%s]: ", question, defaultVal)
	} else {
		_, _ = fmt.Fprintf(p.out, "%s: ", question)
	}
	if line := p.readLine(); line != "" {
		return line
	}
	return defaultVal
}

// askPassword reads a line without echoing. Falls back to plain read if
// stdin is not a terminal (e.g. during tests or piped input).
func (p *prompter) askPassword(question string) string {
	_, _ = fmt.Fprintf(p.out, "%s: ", question)

	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(p.out) // newline after hidden input
		if err == nil {
			return strings.TrimSpace(string(b))
		}
	}

	return p.readLine()
}

// askBool asks a yes/no question.
func (p *prompter) askBool(question string, defaultVal bool) bool {
	def := "y/N"
	if defaultVal {
		def = "Y/n"
	}
	ans := strings.ToLower(p.ask(question+" ("+def+")", ""))
	if ans == "" {
		return defaultVal
	}
	return ans == "y" || ans == "yes"
}
