package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/loqalabs/yapper/internal/config"
	"github.com/loqalabs/yapper/internal/control"
)

var version = "0.1.0-dev"

const usage = "usage: yapper [-socket path] start [-device id] | stop | status | devices | sessions [-limit n] | transcript -session id | version"

func main() {
	var socketPath string
	global := flag.NewFlagSet("yapper", flag.ExitOnError)
	global.StringVar(&socketPath, "socket", config.DefaultSocketPath(), "Path to the yapperd control socket")
	global.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, err := buildCommand(args[0], args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if cmd == nil {
		fmt.Println(version)
		return
	}

	client, err := control.Dial(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v (is yapperd running?)\n", err)
		os.Exit(1)
	}
	defer client.Close()

	resp, err := client.Send(*cmd)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if !resp.OK {
		fmt.Fprintf(os.Stderr, "%s failed: %s\n", cmd.Cmd, resp.Error)
		os.Exit(1)
	}
	printResponse(cmd.Cmd, resp)
}

// buildCommand parses a subcommand. It returns nil for "version", which needs
// no daemon.
func buildCommand(name string, args []string) (*control.Command, error) {
	cmd := &control.Command{Cmd: name}
	switch name {
	case control.CmdStart:
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		fs.StringVar(&cmd.Device, "device", "0", "Capture device index")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
	case control.CmdTranscript:
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		fs.StringVar(&cmd.SessionID, "session", "", "Session ID")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if cmd.SessionID == "" {
			return nil, fmt.Errorf("transcript requires -session")
		}
	case control.CmdSessions:
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		fs.IntVar(&cmd.Limit, "limit", 20, "Number of sessions to list")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
	case control.CmdStop, control.CmdStatus, control.CmdDevices:
	case "version":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown command %q\n%s", name, usage)
	}
	return cmd, nil
}

func printResponse(name string, resp control.Response) {
	switch name {
	case control.CmdStart:
		fmt.Printf("recording on device %s (session %s)\n", resp.Device, resp.SessionID)
	case control.CmdStop:
		if resp.SessionID == "" {
			fmt.Println("no active session")
			return
		}
		fmt.Printf("stopped session %s\n", resp.SessionID)
	case control.CmdStatus:
		if resp.SessionID == "" {
			fmt.Println(resp.State)
			return
		}
		emitted, pending := 0, 0
		if resp.Emitted != nil {
			emitted = *resp.Emitted
		}
		if resp.Pending != nil {
			pending = *resp.Pending
		}
		fmt.Printf("%s  session=%s device=%s emitted=%d pending=%d\n", resp.State, resp.SessionID, resp.Device, emitted, pending)
	case control.CmdDevices:
		if len(resp.Devices) == 0 {
			fmt.Println("no capture devices found")
			return
		}
		for i, d := range resp.Devices {
			fmt.Printf("%d\t%s\n", i, d)
		}
	case control.CmdSessions:
		for _, s := range resp.Sessions {
			ended := "-"
			if s.EndedAt != nil {
				ended = s.EndedAt.Local().Format("15:04:05")
			}
			fmt.Printf("%s\t%s\t%s\t%d\n", s.SessionID, s.StartedAt.Local().Format("2006-01-02 15:04:05"), ended, s.Emitted)
		}
	case control.CmdTranscript:
		fmt.Println(strings.Join(resp.Lines, " "))
	}
}
