// Command liumos opens (or initializes) a persistent-memory arena file,
// boots the checkpointing core against it, and drives the scheduler until
// every registered process has exited. It stands in for the teacher's
// assembly-language boot entry, which this Go core has no equivalent of: on
// a real machine the arena would be a PMEM-backed mmap region rather than
// an ordinary file.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"durable"
	"kernel"
	"pmem"
	"stats"
)

func exit(err error) {
	fmt.Fprintf(os.Stderr, "liumos: %v\n", err)
	os.Exit(1)
}

func main() {
	arenaPath := flag.String("arena", "liumos.pmem", "path to the backing PMEM arena file")
	arenaSize := flag.Int("size", 64<<20, "arena size in bytes; a missing or smaller file is extended to this size, a larger one is used at its own size")
	enableStats := flag.Bool("stats", false, "gather C9 checkpoint counters and report them at shutdown")
	profilePath := flag.String("profile", "", "write the checkpoint counters as a pprof profile to this path at shutdown (requires -stats)")
	flag.Parse()

	stats.Stats = *enableStats

	bytes, freshSize, err := openArena(*arenaPath, *arenaSize)
	if err != nil {
		exit(err)
	}

	region, recovered, err := pmem.Open(bytes, pmem.Config{Flush: durable.FlushRange})
	if err != nil {
		exit(err)
	}
	if recovered {
		log.Printf("liumos: recovering existing arena %s (%d bytes)", *arenaPath, freshSize)
	} else {
		log.Printf("liumos: initializing fresh arena %s (%d bytes)", *arenaPath, freshSize)
	}

	k, err := kernel.Boot(region)
	if err != nil {
		exit(err)
	}
	log.Printf("liumos: boot complete, %d process(es) runnable", k.Sched.NumProcesses())

	for k.Sched.NumProcesses() > 1 {
		if _, errc := k.Sched.SwitchProcess(); errc != 0 {
			exit(errc)
		}
	}
	log.Printf("liumos: all durable processes exited, root remains")

	if *enableStats {
		log.Print("liumos: checkpoint counters:" + stats.Stats2String(*k.Stats))
		if *profilePath != "" {
			writeStatsProfile(*profilePath, *k.Stats)
		}
	}
}

func writeStatsProfile(path string, cs stats.CheckpointStats) {
	f, err := os.Create(path)
	if err != nil {
		log.Printf("liumos: could not write profile: %v", err)
		return
	}
	defer f.Close()
	if err := stats.WriteProfile(f, cs); err != nil {
		log.Printf("liumos: could not write profile: %v", err)
	}
}
