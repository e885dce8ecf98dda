package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
)

type Args struct {
	// Addr is the "host:port" on which the server accepts TCP connections. Defaults to :6667
	Addr string
	// WSAddr is the "host:port" of the optional websocket listener. Empty disables it.
	WSAddr string
	// Name is the server name used as the prefix of server-originated messages. Defaults to chat.local
	Name string
	// RoomCapacity is the maximum number of members per room. Defaults to 50
	RoomCapacity int
	// MessageRate is the per-session inbound rate limit in lines per second. Defaults to 10
	MessageRate float64
	// MessageBurst is the per-session inbound burst allowance. Defaults to 20
	MessageBurst int
}

// parseArgs either from the command line or from the supplied JSON file.
//
// If a JSON file is supplied, it's used as the default parameters, which may be overridden by CLI-supplied arguments.
func parseArgs() Args {
	var args Args
	var confFile string
	const defaultAddr = ":6667"
	const defaultWSAddr = ""
	const defaultName = "chat.local"
	const defaultRoomCapacity = 50
	const defaultMessageRate = 10.0
	const defaultMessageBurst = 20

	flag.StringVar(&args.Addr, "Addr", defaultAddr, "host:port on which the server accepts TCP connections")
	flag.StringVar(&args.WSAddr, "WSAddr", defaultWSAddr, "host:port of the optional websocket listener (empty disables it)")
	flag.StringVar(&args.Name, "Name", defaultName, "server name used as the prefix of server-originated messages")
	flag.IntVar(&args.RoomCapacity, "RoomCapacity", defaultRoomCapacity, "maximum number of members per room")
	flag.Float64Var(&args.MessageRate, "MessageRate", defaultMessageRate, "per-session inbound rate limit in lines per second")
	flag.IntVar(&args.MessageBurst, "MessageBurst", defaultMessageBurst, "per-session inbound burst allowance")
	flag.StringVar(&confFile, "confFile", "", "JSON file with the configuration options. May be overridden by other CLI arguments")
	flag.Parse()

	if len(confFile) != 0 {
		var jsonArgs Args

		f, err := os.Open(confFile)
		if err != nil {
			log.Fatalf("Couldn't open the configuration file '%+v': %+v", confFile, err)
		}
		defer f.Close()

		dec := json.NewDecoder(f)
		err = dec.Decode(&jsonArgs)
		if err != nil {
			log.Fatalf("Couldn't decode the configuration file '%+v': %+v", confFile, err)
		}

		// Walk over every set argument to override the JSON file
		flag.Visit(func(f *flag.Flag) {
			if f.Name == "confFile" {
				// Skip the file itself
				return
			}

			get, ok := f.Value.(flag.Getter)
			if !ok {
				log.Fatalf("'%s' doesn't have an associated flag.Getter", f.Name)
			}

			switch f.Name {
			case "Addr":
				val, _ := get.Get().(string)
				jsonArgs.Addr = val
			case "WSAddr":
				val, _ := get.Get().(string)
				jsonArgs.WSAddr = val
			case "Name":
				val, _ := get.Get().(string)
				jsonArgs.Name = val
			case "RoomCapacity":
				val, _ := get.Get().(int)
				jsonArgs.RoomCapacity = val
			case "MessageRate":
				val, _ := get.Get().(float64)
				jsonArgs.MessageRate = val
			case "MessageBurst":
				val, _ := get.Get().(int)
				jsonArgs.MessageBurst = val
			}
		})

		args = jsonArgs
	}

	log.Printf("Starting server with options:")
	log.Printf("  - Addr: %+v", args.Addr)
	log.Printf("  - WSAddr: %+v", args.WSAddr)
	log.Printf("  - Name: %+v", args.Name)
	log.Printf("  - RoomCapacity: %+v", args.RoomCapacity)
	log.Printf("  - MessageRate: %+v", args.MessageRate)
	log.Printf("  - MessageBurst: %+v", args.MessageBurst)

	return args
}
