// meshtool is a CLI utility for simplifying and optimizing glTF meshes.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Faultbox/meshopt-go/internal/config"
	"github.com/Faultbox/meshopt-go/internal/logger"
)

func main() {
	config.ParseFlags()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Sugar.Debugf("Config: %+v", cfg)

	if err := run(cfg, args[0], args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, command string, args []string) error {
	switch command {
	case "info":
		return cmdInfo(cfg, args)
	case "simplify":
		return cmdSimplify(cfg, args)
	case "sloppy":
		return cmdSloppy(cfg, args)
	case "optimize", "opt":
		return cmdOptimize(cfg, args)
	case "weld":
		return cmdWeld(cfg, args)
	case "process", "p":
		return cmdProcess(cfg, args)
	case "config":
		return cmdConfig(cfg, args)
	case "version":
		return cmdVersion()
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage() {
	fmt.Println(`meshtool - glTF mesh simplification and optimization

Usage:
  meshtool [global options] <command> [options]

Global options:
  -config <file>     Config file (default ./meshtool.yaml, then user config dir)
  -debug             Enable debug logging
  -log-file <file>   Also log to a rotating file
  -workers <n>       Primitives processed concurrently

Commands:
  info <in>                       Show primitives, triangle counts and cache stats
  simplify [options] <in> <out>   Edge-collapse simplification
  sloppy [options] <in> <out>     Grid clustering simplification
  optimize [options] <in> <out>   Vertex cache reordering
  weld [options] <in> <out>       Merge duplicate vertices
  process [options] <in> <out>    Weld, simplify and optimize as configured
  config [path]                   Write the effective config as YAML
  version                         Print the optimizer version

Examples:
  meshtool info scene.glb
  meshtool simplify -ratio 0.25 -error 0.02 scene.glb scene_lod1.glb
  meshtool -workers 8 process -mode sloppy -ratio 0.1 city.glb city_lod3.glb`)
}
