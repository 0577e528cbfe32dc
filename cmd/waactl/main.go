// main.go - waactl, a thin CLI exercising the go-waa library
//
// (c) 2024- go-waa contributors
//
// Licensing Terms: GPLv2
//
// If you need a commercial license for this work, please contact
// the author.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/opencoff/pflag"

	"github.com/opencoff/go-logger"
	waa "github.com/opencoff/go-waa"
)

var z = filepath.Base(os.Args[0])

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", z, fmt.Sprintf(format, args...))
	os.Exit(1)
}

func main() {
	var verbose, logStdout, help bool
	var waaRoot, confRoot string

	fs := flag.NewFlagSet(z, flag.ExitOnError)
	fs.BoolVarP(&help, "help", "h", false, "Show help and exit [False]")
	fs.BoolVarP(&verbose, "verbose", "v", false, "Show debug-level log output [False]")
	fs.BoolVarP(&logStdout, "log-stdout", "", false, "Put log output to STDOUT [False]")
	fs.StringVarP(&waaRoot, "waa", "w", os.Getenv("WAA_PATH"), "Use `D` as the WAA storage root [$WAA_PATH]")
	fs.StringVarP(&confRoot, "conf", "c", os.Getenv("WAA_CONF_PATH"), "Use `D` as the WAA config root [$WAA_CONF_PATH]")
	fs.SetOutput(os.Stdout)

	if err := fs.Parse(os.Args[1:]); err != nil {
		die("%s", err)
	}
	if help || fs.NArg() == 0 {
		usage(fs)
	}

	if waaRoot == "" {
		waaRoot = "/var/spool/waa"
	}
	if confRoot == "" {
		confRoot = "/etc/waa"
	}

	logfile := "waactl.log"
	if logStdout {
		logfile = "-"
	}
	level := logger.LOG_INFO
	if verbose {
		level = logger.LOG_DEBUG
	}
	log, err := logger.NewLogger(logfile, level, z, logger.Ldate|logger.Ltime)
	if err != nil {
		die("logger: %s", err)
	}

	sess := waa.NewSession("", waaRoot)
	sess.ConfRoot = confRoot
	sess.Log = log

	args := fs.Args()
	cmd, rest := args[0], args[1:]

	var cmdErr error
	switch cmd {
	case "status":
		cmdErr = cmdStatus(sess, rest)
	case "sync":
		cmdErr = cmdSync(sess, rest)
	case "show":
		cmdErr = cmdShow(sess, rest)
	default:
		die("unknown subcommand %q", cmd)
	}

	if cmdErr != nil {
		die("%s", cmdErr)
	}
}

func usage(fs *flag.FlagSet) {
	fmt.Printf("Usage: %s [options] <status|sync|show> <path...>\n\n", z)
	fs.PrintDefaults()
	os.Exit(0)
}
