package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/piscesgamedev/pisces/pkg/route"
)

type commandKind int

const (
	cmdRequest commandKind = iota
	cmdNotify
	cmdStats
	cmdQuit
)

// command is one parsed line of interactive input.
type command struct {
	kind    commandKind
	route   route.ID
	payload []byte
}

var errEmptyLine = errors.New("empty line")

// parseLine reads "primary sub [payload]" as a request. The prefixes
// "notify" and "!" send a notification instead. "stats" and "quit" are
// local commands.
func parseLine(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return command{}, errEmptyLine
	}

	switch strings.ToLower(line) {
	case "stats":
		return command{kind: cmdStats}, nil
	case "quit", "exit":
		return command{kind: cmdQuit}, nil
	}

	kind := cmdRequest
	if rest, ok := strings.CutPrefix(line, "!"); ok {
		kind, line = cmdNotify, strings.TrimSpace(rest)
	} else if rest, ok := cutWord(line, "notify"); ok {
		kind, line = cmdNotify, rest
	}

	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 2 {
		return command{}, fmt.Errorf("want \"primary sub [payload]\", got %q", line)
	}
	primary, err := strconv.ParseUint(fields[0], 10, 16)
	if err != nil {
		return command{}, fmt.Errorf("primary command: %w", err)
	}
	sub, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 16)
	if err != nil {
		return command{}, fmt.Errorf("sub command: %w", err)
	}

	cmd := command{kind: kind, route: route.Merge(uint16(primary), uint16(sub))}
	if cmd.route == route.Heartbeat {
		return command{}, fmt.Errorf("route 0-0 is reserved for heartbeats")
	}
	if len(fields) == 3 {
		cmd.payload = []byte(fields[2])
	}
	return cmd, nil
}

func cutWord(line, word string) (string, bool) {
	if len(line) <= len(word) || !strings.EqualFold(line[:len(word)], word) || line[len(word)] != ' ' {
		return line, false
	}
	return strings.TrimSpace(line[len(word):]), true
}
