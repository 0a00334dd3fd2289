package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

// Input reads lines from one reader for every consumer: the REPL and the
// permission prompts. A single goroutine owns the reader so a cancelled read
// never loses the next line.
type Input struct {
	in    io.Reader
	out   io.Writer
	lines chan string
	err   error
	once  sync.Once
}

// NewInput creates an Input that shows prompts on out.
func NewInput(in io.Reader, out io.Writer) *Input {
	return &Input{
		in:    in,
		out:   out,
		lines: make(chan string),
	}
}

func (i *Input) start() {
	go func() {
		scanner := bufio.NewScanner(i.in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			i.lines <- scanner.Text()
		}
		i.err = scanner.Err()
		if i.err == nil {
			i.err = io.EOF
		}
		close(i.lines)
	}()
}

// ReadLine shows prompt and waits for the next line. It returns io.EOF when
// the input is exhausted and ctx.Err() when ctx ends first.
func (i *Input) ReadLine(ctx context.Context, prompt string) (string, error) {
	i.once.Do(i.start)
	if prompt != "" {
		fmt.Fprint(i.out, prompt)
	}

	select {
	case line, ok := <-i.lines:
		if !ok {
			return "", i.err
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
