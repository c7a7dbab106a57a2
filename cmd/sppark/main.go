package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Config   string `short:"c" long:"config" default:"sppark.json" description:"Configuration file"`
	LogLevel string `long:"log-level" description:"Log level (debug, info, warn, error); overrides the config file"`

	Setup   SetupCommand   `command:"setup" description:"Pick the serial port and link type"`
	Console ConsoleCommand `command:"console" alias:"ui" description:"Interactive operator console"`
	Play    PlayCommand    `command:"play" description:"Play a saved point list once"`
	Program ProgramCommand `command:"program" alias:"prog" description:"Run the program list once or in a loop"`
	Auto    AutoCommand    `command:"auto" description:"Run the autonomous pick-and-place cycle"`
	Points  PointsCommand  `command:"points" description:"Show saved points"`
	Export  ExportCommand  `command:"export" description:"Export the outbound and return lists"`
	Import  ImportCommand  `command:"import" description:"Replace the outbound and return lists from a file"`
	Send    SendCommand    `command:"send" description:"Send raw command lines to the controller"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "sppark - operator console for a seven-channel arm"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
