// Copyright 2015, David Howden
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ww2ogg converts Wwise-packed RIFF/Vorbis (.wem) files to
// standard Ogg Vorbis.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/coconutbird/ww2ogg-core"
	"github.com/coconutbird/ww2ogg-core/codebooklib"
	"github.com/coconutbird/ww2ogg-core/validator"
)

// fileConfig is the optional .ww2ogg.yaml (or .ww2ogg.yml) in the working
// directory. A string flag that is set overrides its value; a boolean
// option is on when either the flag or the file turns it on.
type fileConfig struct {
	Codebooks         string `yaml:"codebooks"`
	FullSetup         bool   `yaml:"full_setup"`
	InlineCodebooks   bool   `yaml:"inline_codebooks"`
	ForcePacketFormat string `yaml:"force_packet_format"`
	Validate          bool   `yaml:"validate"`
}

func loadFileConfig(log zerolog.Logger) fileConfig {
	var cfg fileConfig
	for _, candidate := range []string{".ww2ogg.yaml", ".ww2ogg.yml"} {
		data, err := os.ReadFile(candidate)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Warn().Err(err).Str("file", candidate).Msg("ignoring unparsable config file")
			continue
		}
		log.Debug().Str("file", candidate).Msg("loaded config file")
		break
	}
	return cfg
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	app := &cli.App{
		Name:  "ww2ogg",
		Usage: "convert Wwise RIFF/Vorbis audio to standard Ogg Vorbis",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output file path (defaults to the input path with .ogg)"},
			&cli.StringFlag{Name: "codebooks", Usage: "path to a packed codebook library file"},
			&cli.BoolFlag{Name: "full-setup", Usage: "copy the setup header's structure (floor/residue/mapping/mode) verbatim instead of rebuilding it"},
			&cli.BoolFlag{Name: "inline-codebooks", Usage: "rebuild codebooks from the bitstream itself instead of a library"},
			&cli.StringFlag{Name: "force-packet-format", Usage: "override mod_packets detection: \"mod\" or \"no-mod\""},
			&cli.BoolFlag{Name: "validate", Usage: "run a structural sanity pass over the produced Ogg stream"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable debug logging"},
		},
		ArgsUsage: "<input.wem>",
		Action: func(cctx *cli.Context) error {
			if cctx.Bool("verbose") {
				log = log.Level(zerolog.DebugLevel)
			} else {
				log = log.Level(zerolog.InfoLevel)
			}

			if cctx.NArg() != 1 {
				return cli.Exit("expected exactly one input file", 1)
			}
			input := cctx.Args().Get(0)

			cfg := loadFileConfig(log)

			codebooksPath := cctx.String("codebooks")
			if codebooksPath == "" {
				codebooksPath = cfg.Codebooks
			}
			fullSetup := cctx.Bool("full-setup") || cfg.FullSetup
			inlineCodebooks := cctx.Bool("inline-codebooks") || cfg.InlineCodebooks
			forceFormat := cctx.String("force-packet-format")
			if forceFormat == "" {
				forceFormat = cfg.ForcePacketFormat
			}
			validate := cctx.Bool("validate") || cfg.Validate

			output := cctx.String("output")
			if output == "" {
				ext := filepath.Ext(input)
				output = strings.TrimSuffix(input, ext) + ".ogg"
			}

			return run(log, input, output, codebooksPath, fullSetup, inlineCodebooks, forceFormat, validate)
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("conversion failed")
		os.Exit(1)
	}
}

func run(log zerolog.Logger, inputPath, outputPath, codebooksPath string, fullSetup, inlineCodebooks bool, forceFormat string, validate bool) error {
	in, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer in.Close()

	stat, err := in.Stat()
	if err != nil {
		return fmt.Errorf("statting input: %w", err)
	}

	mtype, err := mimetype.DetectFile(inputPath)
	if err != nil {
		log.Warn().Err(err).Msg("could not sniff input mime type, proceeding anyway")
	} else if mtype.String() != "audio/x-wav" && mtype.Parent() != nil && mtype.Parent().String() != "audio/x-wav" {
		log.Warn().Str("detected", mtype.String()).Msg("input does not look like a RIFF/WAVE container; attempting conversion anyway")
	}

	opts := ww2ogg.Options{
		FullSetup:       fullSetup,
		InlineCodebooks: inlineCodebooks,
	}

	switch strings.ToLower(forceFormat) {
	case "mod":
		opts.ForcePacketFormat = ww2ogg.ForcePacketFormatMod
	case "no-mod", "nomod":
		opts.ForcePacketFormat = ww2ogg.ForcePacketFormatNoMod
	case "":
		opts.ForcePacketFormat = ww2ogg.ForcePacketFormatAuto
	default:
		return fmt.Errorf("unrecognized --force-packet-format value %q", forceFormat)
	}

	if codebooksPath != "" {
		lib, err := os.Open(codebooksPath)
		if err != nil {
			return fmt.Errorf("opening codebook library: %w", err)
		}
		defer lib.Close()
		libStat, err := lib.Stat()
		if err != nil {
			return fmt.Errorf("statting codebook library: %w", err)
		}
		library, err := codebooklib.Load(lib, libStat.Size())
		if err != nil {
			return fmt.Errorf("loading codebook library: %w", err)
		}
		opts.Codebooks = library
		log.Debug().Int("count", library.Count()).Str("file", codebooksPath).Msg("loaded codebook library")
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer out.Close()

	log.Info().Str("input", inputPath).Str("output", outputPath).Msg("converting")
	if err := ww2ogg.Convert(in, stat.Size(), out, opts); err != nil {
		return fmt.Errorf("converting: %w", err)
	}

	if validate {
		if err := out.Sync(); err != nil {
			return fmt.Errorf("flushing output before validation: %w", err)
		}
		vf, err := os.Open(outputPath)
		if err != nil {
			return fmt.Errorf("reopening output for validation: %w", err)
		}
		defer vf.Close()
		report, findings := validator.Validate(vf)
		for _, f := range findings {
			log.Warn().Str("kind", f.Kind).Msg(f.Message)
		}
		if validator.LooksLikeWrongCodebookLibrary(report) {
			log.Warn().Msg("output's first audio page is suspiciously small; double-check the codebook library matches this file")
		}
		log.Info().Int("pages", len(report.Pages)).Int("packets", report.PacketCount).Msg("validated output stream")
	}

	log.Info().Msg("done")
	return nil
}
