package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"stilllift/pkg/config"
	"stilllift/pkg/content"
	"stilllift/pkg/narration"
	"stilllift/pkg/selector"
)

var errInvalidLibrary = errors.New("content library is invalid")

func newPickCmd() *cobra.Command {
	var moodFlag, contextFlag, libraryPath string
	var count int

	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Print consecutive message selections for a mood and context",
		RunE: func(cmd *cobra.Command, args []string) error {
			mood, err := content.ParseMood(moodFlag)
			if err != nil {
				return err
			}
			c, err := content.ParseContext(contextFlag)
			if err != nil {
				return err
			}
			lib, err := loadLibrary(libraryPath)
			if err != nil {
				return err
			}

			sel := selector.New(lib)
			var prev *content.Message
			for i := range count {
				msg := sel.Select(mood, c, prev)
				if msg == nil {
					return fmt.Errorf("no content for %s/%s", mood, c)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d. [%s #%d] %s\n", i+1, msg.ActionType, msg.AudioIndex, msg.Text)
				prev = msg
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&moodFlag, "mood", "", "good, okay, bad or awful")
	cmd.Flags().StringVar(&contextFlag, "context", "", "still, move or focused")
	cmd.Flags().IntVarP(&count, "count", "n", 5, "number of selections")
	cmd.Flags().StringVar(&libraryPath, "library", "", "library YAML file (default: built-in)")
	_ = cmd.MarkFlagRequired("mood")
	_ = cmd.MarkFlagRequired("context")
	return cmd
}

func newCandidatesCmd() *cobra.Command {
	var title, message, moodFlag, contextFlag string
	opts := narration.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "Print the asset paths tried for a narration, in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if moodFlag != "" {
				m, err := content.ParseMood(moodFlag)
				if err != nil {
					return err
				}
				opts.Mood = m
			}
			if contextFlag != "" {
				c, err := content.ParseContext(contextFlag)
				if err != nil {
					return err
				}
				opts.Context = c
			}

			paths := narration.Candidates(title, message, opts)
			if len(paths) == 0 {
				return errors.New("no candidates: give --mood and --context, --message or --homepage")
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"#", "Path"})
			for i, p := range paths {
				t.AppendRow(table.Row{i + 1, p})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&moodFlag, "mood", "", "good, okay, bad or awful")
	cmd.Flags().StringVar(&contextFlag, "context", "", "still, move or focused")
	cmd.Flags().IntVar(&opts.AudioIndex, "index", 0, "1-based audio index (default 1)")
	cmd.Flags().BoolVar(&opts.PreferExactIndex, "exact", false, "do not fall back to index 1")
	cmd.Flags().BoolVar(&opts.IsHomepage, "homepage", false, "include the homepage track")
	cmd.Flags().StringVar(&title, "title", "", "narration title")
	cmd.Flags().StringVar(&message, "message", "", "narration text")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var libraryPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the content library structure",
		RunE: func(cmd *cobra.Command, args []string) error {
			lib := content.Default()
			var res content.ValidationResult
			if libraryPath == "" {
				res = lib.Validate()
			} else {
				var err error
				lib, res, err = content.LoadFile(libraryPath)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if res.IsValid {
				fmt.Fprintf(out, "Library is valid: %d messages in %d buckets\n", lib.Count(), len(lib.Buckets()))
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"#", "Problem"})
			for i, e := range res.Errors {
				t.AppendRow(table.Row{strconv.Itoa(i + 1), e})
			}
			t.Render()
			return fmt.Errorf("%w: %d problem(s)", errInvalidLibrary, len(res.Errors))
		},
	}
	cmd.Flags().StringVar(&libraryPath, "library", "", "library YAML file (default: built-in)")
	return cmd
}

func newInitConfigCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Write the default config file if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.GenerateDefault(configPath); err != nil {
				return fmt.Errorf("failed to generate config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config file generated: %s\n", configPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "path to the YAML config file")
	return cmd
}
