// Copyright 2023 Versity Software
// This file is licensed under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

package debuglogger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/davecgh/go-spew/spew"
)

type Color string

const (
	green  Color = "\033[32m"
	yellow Color = "\033[33m"
	blue   Color = "\033[34m"

	reset      = "\033[0m"
	borderChar = "─"
	boxWidth   = 100
)

var (
	debugEnabled atomic.Bool
	out          io.Writer = os.Stdout
)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// SetDebugEnabled sets the debug mode
func SetDebugEnabled() {
	debugEnabled.Store(true)
}

// Logf is the same as 'fmt.Printf' with debug prefix,
// a color added and '\n' at the end
func Logf(format string, v ...any) {
	if !debugEnabled.Load() {
		return
	}
	debugPrefix := "[DEBUG]: "
	fmt.Fprintf(out, string(yellow)+debugPrefix+format+reset+"\n", v...)
}

// Infof prints out green info block with [INFO]: prefix
func Infof(format string, v ...any) {
	if !debugEnabled.Load() {
		return
	}
	debugPrefix := "[INFO]: "
	fmt.Fprintf(out, string(green)+debugPrefix+format+reset+"\n", v...)
}

// Dump prints a deep representation of v inside a titled box.
// Used for raw SDK outputs that have no JSON form worth printing.
func Dump(title string, v any) {
	if !debugEnabled.Load() {
		return
	}
	PrintInsideHorizontalBorders(blue, title, strings.TrimRight(dumper.Sdump(v), "\n"), boxWidth)
}

// PrintFields prints key/value pairs inside a closed box
func PrintFields(title string, fields map[string]string, order ...string) {
	if !debugEnabled.Load() {
		return
	}
	wrapInBox(green, title, boxWidth, func() {
		for _, key := range order {
			if value, ok := fields[key]; ok {
				printWrappedLine(yellow, key, value)
			}
		}
	})
}

// PrintInsideHorizontalBorders prints the text inside horizontal
// border and title in the center of upper border
func PrintInsideHorizontalBorders(color Color, title, text string, width int) {
	if !debugEnabled.Load() {
		return
	}
	printBoxTitleLine(color, title, width, false)
	fmt.Fprintf(out, "%s%s%s\n", color, text, reset)
	printHorizontalBorder(color, width, false)
}

// Prints out box title either with closing characters or not:  "┌", "┐"
// e.g ┌────────────────[ INVOKE OUTPUT ]────────────────┐
func printBoxTitleLine(color Color, title string, length int, closing bool) {
	leftCorner, rightCorner := "┌", "┐"

	if !closing {
		leftCorner, rightCorner = borderChar, borderChar
	}

	titleFormatted := fmt.Sprintf("[ %s ]", title)
	borderSpace := length - len(titleFormatted) - 2 // 2 for corners
	if borderSpace < 0 {
		borderSpace = 0
	}
	leftLen := borderSpace / 2
	rightLen := borderSpace - leftLen

	line := leftCorner +
		strings.Repeat(borderChar, leftLen) +
		titleFormatted +
		strings.Repeat(borderChar, rightLen) +
		rightCorner

	fmt.Fprintln(out, string(color)+line+reset)
}

// Prints out a horizontal line either with closing characters or not: "└", "┘"
func printHorizontalBorder(color Color, length int, closing bool) {
	leftCorner, rightCorner := "└", "┘"
	if !closing {
		leftCorner, rightCorner = borderChar, borderChar
	}

	line := leftCorner + strings.Repeat(borderChar, length-2) + rightCorner + reset
	fmt.Fprintln(out, string(color)+line)
}

// wrapInBox wraps the output of a function call (fn) inside a styled box with a title.
func wrapInBox(color Color, title string, length int, fn func()) {
	printBoxTitleLine(color, title, length, true)
	fn()
	printHorizontalBorder(color, length, true)
}

// prints a formatted key-value pair within a box layout,
// wrapping the value text if it exceeds the allowed width.
func printWrappedLine(keyColor Color, key, value string) {
	keyWidth := max(len(key), 16)
	// "│ " + key + " : " on the left, " │" on the right
	lineWidth := boxWidth - keyWidth - 7
	valueLines := wrapText(value, lineWidth)
	if len(valueLines) == 0 {
		valueLines = []string{""}
	}

	for i, line := range valueLines {
		line += strings.Repeat(" ", lineWidth-len(line))
		if i == 0 {
			fmt.Fprintf(out, "%s│%s %s%-*s%s : %s %s│%s\n",
				green, reset, keyColor, keyWidth, key, reset, line, green, reset)
			continue
		}
		fmt.Fprintf(out, "%s│%s %s   %s %s│%s\n",
			green, reset, strings.Repeat(" ", keyWidth), line, green, reset)
	}
}

// wrapText splits the input text into lines of at most `width` characters each.
func wrapText(text string, width int) []string {
	var lines []string
	for len(text) > width {
		lines = append(lines, text[:width])
		text = text[width:]
	}
	if text != "" {
		lines = append(lines, text)
	}
	return lines
}
