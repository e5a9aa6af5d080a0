// Package slicer computes backward slices over a smali program: every line
// that can influence a register at a given use, across registers of the
// same method and into the return statements of invoked methods.
package slicer

import (
	"sort"

	"jsbridge/internal/smali"
)

// Entry is one line of a slice.
type Entry struct {
	ID    smali.ClassID `json:"-"`
	Class string        `json:"class"`
	Line  int           `json:"line"`
	Text  string        `json:"text"`
}

type entryKey struct {
	class smali.ClassID
	line  int
}

// Slice is an ordered set of lines keyed by (class, line). Iteration order
// is class descriptor, then line number.
type Slice struct {
	prog    *smali.Program
	entries map[entryKey]Entry
}

func newSlice(prog *smali.Program) *Slice {
	return &Slice{prog: prog, entries: make(map[entryKey]Entry)}
}

func (s *Slice) add(class smali.ClassID, line int) {
	k := entryKey{class, line}
	if _, ok := s.entries[k]; ok {
		return
	}
	s.entries[k] = Entry{
		ID:    class,
		Class: s.prog.Class(class).Name,
		Line:  line,
		Text:  s.prog.Line(smali.Pos{Class: class, Line: line}),
	}
}

// Contains reports whether the slice holds line of class.
func (s *Slice) Contains(class smali.ClassID, line int) bool {
	_, ok := s.entries[entryKey{class, line}]
	return ok
}

func (s *Slice) Len() int { return len(s.entries) }

// Entries returns the slice in order.
func (s *Slice) Entries() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Class != out[j].Class {
			return out[i].Class < out[j].Class
		}
		return out[i].Line < out[j].Line
	})
	return out
}

// Lines returns the text of every entry in order.
func (s *Slice) Lines() []string {
	es := s.Entries()
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Text
	}
	return out
}
