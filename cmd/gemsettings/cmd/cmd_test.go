package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wntrblm/gemsettings/pkg/api"
	"github.com/wntrblm/gemsettings/pkg/di"
	"github.com/wntrblm/gemsettings/pkg/fix16"
	"github.com/wntrblm/gemsettings/pkg/settings"
)

// resetFlags puts every flag back to its default so runs do not leak
// state into each other through the package level commands
func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(stdin)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

type workspace struct {
	dir        string
	configPath string
}

func (w workspace) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return execute(t, nil, append(args, "--config", w.configPath, "--log-level", "error")...)
}

func (w workspace) runWithInput(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()
	return execute(t, stdin, append(args, "--config", w.configPath, "--log-level", "error")...)
}

func setupWorkspace(t *testing.T, initArgs ...string) workspace {
	t.Helper()
	dir := t.TempDir()
	w := workspace{dir: dir, configPath: filepath.Join(dir, "config.yaml")}

	args := append([]string{"init", "--data-dir", filepath.Join(dir, "data")}, initArgs...)
	_, _, err := w.run(t, args...)
	require.NoError(t, err)
	return w
}

func showJSON(t *testing.T, w workspace) (settings.Record, bool) {
	t.Helper()
	out, _, err := w.run(t, "show", "-o", "json")
	require.NoError(t, err)

	var resp struct {
		Valid  bool            `json:"valid"`
		Record settings.Record `json:"record"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp.Record, resp.Valid
}

func TestInitCommand(t *testing.T) {
	t.Run("Creates config and erased image", func(t *testing.T) {
		w := setupWorkspace(t)

		assert.FileExists(t, w.configPath)
		image, err := os.ReadFile(filepath.Join(w.dir, "data", "nvm.bin"))
		require.NoError(t, err)
		assert.Len(t, image, 4096)
		assert.Equal(t, bytes.Repeat([]byte{0xFF}, 4096), image)
	})

	t.Run("Already initialized", func(t *testing.T) {
		w := setupWorkspace(t)

		out, _, err := w.run(t, "init", "--data-dir", filepath.Join(w.dir, "data"))
		require.NoError(t, err)
		assert.Contains(t, out, "Already initialized")
	})

	t.Run("Write defaults", func(t *testing.T) {
		w := setupWorkspace(t, "--write-defaults")

		rec, valid := showJSON(t, w)
		assert.True(t, valid)
		assert.Equal(t, settings.Defaults(), rec)
	})
}

func TestShowCommand_ErasedImage(t *testing.T) {
	w := setupWorkspace(t)

	out, stderr, err := w.run(t, "show")
	require.NoError(t, err)
	assert.Contains(t, stderr, "invalid")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 15)
	assert.Equal(t, "Settings:", lines[0])
	assert.Contains(t, out, "ADC gain: 2048")

	_, _, err = w.run(t, "show", "-o", "xml")
	assert.Error(t, err)
}

func TestSetAndGet(t *testing.T) {
	w := setupWorkspace(t)

	_, _, err := w.run(t, "set", "adc_gain_corr=3000", "led_brightness = 10", "chorus_frequency=0.5")
	require.NoError(t, err)

	out, _, err := w.run(t, "get", "adc_gain_corr")
	require.NoError(t, err)
	assert.Equal(t, "3000\n", out)

	rec, valid := showJSON(t, w)
	assert.True(t, valid)
	assert.Equal(t, uint16(10), rec.LedBrightness)
	assert.Equal(t, fix16.FromFloat(0.5), rec.ChorusFrequency)
}

func TestSetCommand_Rejects(t *testing.T) {
	w := setupWorkspace(t)

	_, _, err := w.run(t, "set", "adc_gain_corr=5000")
	assert.ErrorIs(t, err, settings.ErrGainOutOfRange)

	_, _, err = w.run(t, "set", "led_brightness=256")
	assert.ErrorIs(t, err, settings.ErrBrightnessOutOfRange)

	_, _, err = w.run(t, "set", "volume=11")
	assert.ErrorIs(t, err, settings.ErrUnknownField)

	_, _, err = w.run(t, "set", "adc_gain_corr")
	assert.Error(t, err)

	// nothing was written
	_, valid := showJSON(t, w)
	assert.False(t, valid)
}

func TestApplyCommand(t *testing.T) {
	w := setupWorkspace(t)

	file := filepath.Join(w.dir, "settings.yaml")
	require.NoError(t, os.WriteFile(file, []byte("adc_gain_corr: 1024\nchorus_frequency: 0.5\n"), 0600))

	_, _, err := w.run(t, "apply", "-f", file)
	require.NoError(t, err)

	rec, valid := showJSON(t, w)
	assert.True(t, valid)
	assert.Equal(t, uint16(1024), rec.AdcGainCorr)
	assert.Equal(t, fix16.FromFloat(0.5), rec.ChorusFrequency)
	assert.Equal(t, settings.Defaults().SmoothSensitivity, rec.SmoothSensitivity)

	t.Run("Merge keeps stored fields", func(t *testing.T) {
		patch := filepath.Join(w.dir, "patch.yaml")
		require.NoError(t, os.WriteFile(patch, []byte("led_brightness: 5\n"), 0600))

		_, _, err := w.run(t, "apply", "-f", patch, "--merge")
		require.NoError(t, err)

		rec, _ := showJSON(t, w)
		assert.Equal(t, uint16(1024), rec.AdcGainCorr)
		assert.Equal(t, uint16(5), rec.LedBrightness)
	})

	t.Run("Unknown field", func(t *testing.T) {
		bad := filepath.Join(w.dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("volume: 11\n"), 0600))

		_, _, err := w.run(t, "apply", "-f", bad)
		assert.Error(t, err)
	})

	t.Run("Out of range", func(t *testing.T) {
		bad := filepath.Join(w.dir, "range.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("adc_gain_corr: 100\n"), 0600))

		_, _, err := w.run(t, "apply", "-f", bad)
		assert.ErrorIs(t, err, settings.ErrGainOutOfRange)
	})
}

func TestShowYAMLRoundTrip(t *testing.T) {
	w := setupWorkspace(t)

	_, _, err := w.run(t, "set", "led_brightness=42", "castor_knob_min=-2.5")
	require.NoError(t, err)
	want, _ := showJSON(t, w)

	out, _, err := w.run(t, "show", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "castor_knob_min: -2.5\n")
	assert.NotContains(t, out, `"`)
	file := filepath.Join(w.dir, "export.yaml")
	require.NoError(t, os.WriteFile(file, []byte(out), 0600))

	_, _, err = w.run(t, "erase")
	require.NoError(t, err)
	_, _, err = w.run(t, "apply", "-f", file)
	require.NoError(t, err)

	got, valid := showJSON(t, w)
	assert.True(t, valid)
	assert.Equal(t, want, got)
}

func TestEraseAndDump(t *testing.T) {
	w := setupWorkspace(t, "--write-defaults")

	out, _, err := w.run(t, "dump")
	require.NoError(t, err)
	assert.Contains(t, out, "00000000  63 08 00")

	out, _, err = w.run(t, "erase")
	require.NoError(t, err)
	assert.Contains(t, out, "Settings erased")

	out, _, err = w.run(t, "dump")
	require.NoError(t, err)
	// only the marker byte changes
	assert.Contains(t, out, "00000000  ff 08 00")

	_, valid := showJSON(t, w)
	assert.False(t, valid)
}

func TestBackupAndRestore(t *testing.T) {
	w := setupWorkspace(t)

	_, _, err := w.run(t, "set", "adc_gain_corr=3000")
	require.NoError(t, err)

	out, _, err := w.run(t, "backup")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	out, _, err = w.run(t, "backups")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, id)
	assert.Contains(t, out, "true")

	_, _, err = w.run(t, "erase")
	require.NoError(t, err)

	out, _, err = w.run(t, "restore", id)
	require.NoError(t, err)
	assert.Contains(t, out, id)

	out, _, err = w.run(t, "get", "adc_gain_corr")
	require.NoError(t, err)
	assert.Equal(t, "3000\n", out)

	_, _, err = w.run(t, "restore", "not-a-ksuid")
	assert.Error(t, err)
}

func TestSysexRoundTrip(t *testing.T) {
	for _, mode := range []string{"write", "response"} {
		t.Run(mode, func(t *testing.T) {
			w := setupWorkspace(t)

			_, _, err := w.run(t, "set", "adc_gain_corr=1500", "pollux_follower_threshold=9")
			require.NoError(t, err)
			want, _ := showJSON(t, w)

			out, _, err := w.run(t, "sysex", "encode", "--mode", mode)
			require.NoError(t, err)
			lines := strings.Split(strings.TrimSpace(out), "\n")
			require.Len(t, lines, 8)
			assert.True(t, strings.HasPrefix(lines[0], "F0 77"))
			assert.True(t, strings.HasSuffix(lines[0], "F7"))

			_, _, err = w.run(t, "erase")
			require.NoError(t, err)

			_, _, err = w.runWithInput(t, strings.NewReader(out), "sysex", "decode", "--save")
			require.NoError(t, err)

			got, valid := showJSON(t, w)
			assert.True(t, valid)
			assert.Equal(t, want, got)
		})
	}
}

func TestSysexEncode_Modes(t *testing.T) {
	w := setupWorkspace(t)

	out, _, err := w.run(t, "sysex", "encode", "--mode", "reset")
	require.NoError(t, err)
	assert.Equal(t, "F0 77 07 F7\n", out)

	out, _, err = w.run(t, "sysex", "encode", "--mode", "read")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 8)
	assert.Equal(t, "F0 77 08 07 F7", lines[7])

	_, _, err = w.run(t, "sysex", "encode", "--mode", "bogus")
	assert.Error(t, err)
}

func TestSysexDecode_Incomplete(t *testing.T) {
	w := setupWorkspace(t, "--write-defaults")

	out, _, err := w.run(t, "sysex", "encode")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")

	_, _, err = w.runWithInput(t, strings.NewReader(strings.Join(lines[:7], "\n")), "sysex", "decode")
	assert.Error(t, err)
}

type captureFactory struct {
	starter *captureStarter
}

func (f *captureFactory) CreateServerStarter() api.ServerStarter { return f.starter }

type captureStarter struct {
	config  api.ServerConfig
	manager api.SettingsManager
	snaps   api.SnapshotStore
}

func (s *captureStarter) StartServer(_ context.Context, manager api.SettingsManager, snapshots api.SnapshotStore, config api.ServerConfig, _ zerolog.Logger) error {
	s.manager = manager
	s.snaps = snapshots
	s.config = config
	return nil
}

func TestServeCommand(t *testing.T) {
	w := setupWorkspace(t)

	starter := &captureStarter{}
	c := di.NewContainer()
	c.SetServerFactory(&captureFactory{starter: starter})
	SetContainer(c)
	t.Cleanup(func() { SetContainer(nil) })

	_, _, err := w.run(t, "serve", "--port", "9400", "--api-key", "k")
	require.NoError(t, err)

	assert.Equal(t, 9400, starter.config.Port)
	assert.Equal(t, "127.0.0.1", starter.config.Bind)
	assert.Equal(t, "k", starter.config.APIKey)
	assert.NotNil(t, starter.manager)
	assert.NotNil(t, starter.snaps)

	// without flags the configured, generated key is used
	_, _, err = w.run(t, "serve")
	require.NoError(t, err)
	assert.Equal(t, 9300, starter.config.Port)
	assert.Len(t, starter.config.APIKey, 64)
}
