package cmd

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wntrblm/gemsettings/pkg/settings"
	"github.com/wntrblm/gemsettings/pkg/sysex"
)

// sysexCmd groups the SysEx conversions
var sysexCmd = &cobra.Command{
	Use:   "sysex",
	Short: "Convert settings to and from SysEx messages",
}

// sysexEncodeCmd represents the sysex encode command
var sysexEncodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Print the SysEx messages that transfer the stored record",
	Long: `Print one SysEx message per line as space separated hex bytes.

Modes:
  write     the eight write-settings messages a host sends to the device
  response  the eight replies a device sends to read-settings requests
  read      the eight read-settings requests
  reset     the reset-settings message`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sessionFrom(cmd)
		if err != nil {
			return err
		}
		mode, _ := cmd.Flags().GetString("mode")

		raw, err := s.manager.ReadRaw()
		if err != nil {
			return err
		}

		msgs, err := sysexMessages(mode, raw)
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			fmt.Fprintf(cmd.OutOrStdout(), "% X\n", msg)
		}
		return nil
	},
}

// sysexDecodeCmd represents the sysex decode command
var sysexDecodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Assemble a settings record from SysEx messages",
	Long: `Read hex encoded SysEx messages, one per line, from a file or stdin and
assemble the settings record they carry. Write messages carry their chunk
index; read responses are taken in chunk order. The record is validated and
printed, and saved to the flash image with --save.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := sessionFrom(cmd)
		if err != nil {
			return err
		}
		save, _ := cmd.Flags().GetBool("save")

		in := cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		raw, err := assembleSettings(in)
		if err != nil {
			return err
		}
		rec, err := s.manager.Codec().Decode(raw)
		if err != nil {
			return err
		}

		if save {
			if err := s.manager.Save(rec); err != nil {
				return err
			}
			s.logger.Info().Msg("settings saved from sysex")
		}
		return writeRecord(cmd.OutOrStdout(), "text", rec, true)
	},
}

func init() {
	rootCmd.AddCommand(sysexCmd)
	sysexCmd.AddCommand(sysexEncodeCmd)
	sysexCmd.AddCommand(sysexDecodeCmd)

	sysexEncodeCmd.Flags().String("mode", "write", "Messages to print: write, response, read or reset")
	sysexDecodeCmd.Flags().Bool("save", false, "Save the decoded record to the flash image")
}

func sysexMessages(mode string, raw []byte) ([][]byte, error) {
	switch mode {
	case "write":
		return sysex.WriteSettingsMessages(raw)
	case "response":
		return sysex.ReadSettingsResponses(raw)
	case "read":
		msgs := make([][]byte, sysex.ChunkCount)
		for n := range msgs {
			msg, err := sysex.ReadSettingsRequest(n)
			if err != nil {
				return nil, err
			}
			msgs[n] = msg
		}
		return msgs, nil
	case "reset":
		return [][]byte{sysex.ResetSettingsMessage()}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q (must be write, response, read or reset)", mode)
	}
}

// assembleSettings feeds every message in r to an Assembler
func assembleSettings(r io.Reader) ([]byte, error) {
	var asm sysex.Assembler
	responses := 0

	scanner := bufio.NewScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.Join(strings.Fields(scanner.Text()), "")
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		msg, err := hex.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		cmd, _, err := sysex.ParseMessage(msg)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		switch cmd {
		case sysex.CmdWriteSettings:
			err = asm.AddWriteMessage(msg)
		case sysex.CmdReadSettings:
			err = asm.AddReadResponse(responses, msg)
			responses++
		default:
			err = fmt.Errorf("%w: unexpected %s message", sysex.ErrMalformedMessage, cmd)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return asm.Bytes(settings.Size)
}
