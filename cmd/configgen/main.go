package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/chplink/internal/config"
	"github.com/danmuck/chplink/internal/observability"
)

func main() {
	observability.InitLogger("configgen")

	output := flag.String("output", "chplink.toml", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", "", "config path for validation (defaults to -output)")
	resolved := flag.Bool("resolved", false, "with -validate, print the config with every default filled in")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = *output
		}
		cfg, err := config.Load(path)
		if err != nil {
			log.Fatal().Err(err).Msg("config invalid")
		}
		if *resolved {
			b, err := config.Render(cfg)
			if err != nil {
				log.Fatal().Err(err).Msg("render failed")
			}
			os.Stdout.Write(b)
		}
		log.Info().Str("path", path).Int("commands", len(cfg.Commands)).Msg("validated config")
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal().Err(err).Msg("write template failed")
	}
	log.Info().Str("path", *output).Msg("wrote config template")
}
