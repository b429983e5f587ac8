package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"
)

// Config captures all command-line options required to run the uploader.
type Config struct {
	CabinetPath        string
	Folder             string
	All                bool
	KeepFolders        bool
	IMAPHost           string
	IMAPPort           int
	IMAPUser           string
	IMAPPass           string
	UseTLS             bool
	InsecureSkipVerify bool
	AuthPlain          bool
	TargetFolder       string
	StateDir           string
	DryRun             bool
	LogLevel           string
	LogDir             string
	IncludeHeader      []string
	IncludeBody        []string
	ExcludeHeader      []string
	ExcludeBody        []string
}

// RegisterFlags attaches all CLI flags to the provided command. Logging and
// --config are persistent so subcommands share them.
func RegisterFlags(cmd *cobra.Command) error {
	defaultStateDir, err := defaultStateDir()
	if err != nil {
		return err
	}

	persistent := cmd.PersistentFlags()
	persistent.String("config", "", "YAML file with default values for any flag")
	persistent.String("log-level", "info", "Logging level: debug, info, warn, error")
	persistent.String("log-dir", "", "Directory for log files (logs go to stdout only when empty)")

	flags := cmd.Flags()
	flags.String("cabinet", "", "Path to the personal filing cabinet file to upload")
	flags.String("folder", "", "Cabinet folder to upload, as a slash separated path of folder names (default: root folder)")
	flags.Bool("all", false, "Upload every mail record, ignoring the folder tree")
	flags.Bool("keep-folders", false, "Mirror cabinet sub-folders below the target folder")
	flags.String("imap-host", "", "IMAP server hostname")
	flags.Int("imap-port", 993, "IMAP server port")
	flags.String("imap-user", "", "IMAP username")
	flags.String("imap-pass", "", "IMAP password (falls back to IMAP_PASS env var)")
	flags.Bool("use-tls", true, "Use TLS for the IMAP connection")
	flags.Bool("insecure-skip-verify", false, "Skip TLS certificate verification (not recommended)")
	flags.Bool("auth-plain", false, "Authenticate with SASL PLAIN instead of LOGIN")
	flags.String("target-folder", "INBOX", "Target IMAP folder for uploaded mail")
	flags.String("state-dir", defaultStateDir, "Directory for incremental sync state files")
	flags.Bool("dry-run", false, "Simulate the sync and emit stats without uploading")
	flags.StringArray("include-header", nil, "Regex allow-list applied to message headers (mutually exclusive with exclude flags)")
	flags.StringArray("include-body", nil, "Regex allow-list applied to message bodies (mutually exclusive with exclude flags)")
	flags.StringArray("exclude-header", nil, "Regex block-list applied to message headers (mutually exclusive with include flags)")
	flags.StringArray("exclude-body", nil, "Regex block-list applied to message bodies (mutually exclusive with include flags)")

	return nil
}

// LoadConfig converts the parsed Cobra flags into a Config struct with validation.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	if err := applyFile(cmd, true); err != nil {
		return Config{}, err
	}
	flags := cmd.Flags()

	var (
		cfg Config
		err error
	)
	r := flagReader{flags: flags}
	cfg.CabinetPath = r.str("cabinet")
	cfg.Folder = r.str("folder")
	cfg.All = r.boolean("all")
	cfg.KeepFolders = r.boolean("keep-folders")
	cfg.IMAPHost = r.str("imap-host")
	cfg.IMAPPort = r.integer("imap-port")
	cfg.IMAPUser = r.str("imap-user")
	cfg.IMAPPass = r.str("imap-pass")
	cfg.UseTLS = r.boolean("use-tls")
	cfg.InsecureSkipVerify = r.boolean("insecure-skip-verify")
	cfg.AuthPlain = r.boolean("auth-plain")
	cfg.TargetFolder = r.str("target-folder")
	cfg.StateDir = r.str("state-dir")
	cfg.DryRun = r.boolean("dry-run")
	cfg.LogLevel = r.str("log-level")
	cfg.LogDir = r.str("log-dir")
	cfg.IncludeHeader = r.array("include-header")
	cfg.IncludeBody = r.array("include-body")
	cfg.ExcludeHeader = r.array("exclude-header")
	cfg.ExcludeBody = r.array("exclude-body")
	if r.err != nil {
		return Config{}, r.err
	}

	if cfg.IMAPPass == "" {
		cfg.IMAPPass = os.Getenv("IMAP_PASS")
	}

	if cfg.StateDir == "" {
		cfg.StateDir, err = defaultStateDir()
		if err != nil {
			return Config{}, err
		}
	}
	cfg.StateDir = filepath.Clean(cfg.StateDir)
	cfg.LogLevel = normalizeLevel(cfg.LogLevel)

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadLogging reads only the shared logging options. Subcommands that never
// talk to IMAP use it instead of LoadConfig; config file keys they do not
// know are ignored.
func LoadLogging(cmd *cobra.Command) (Config, error) {
	if err := applyFile(cmd, false); err != nil {
		return Config{}, err
	}

	r := flagReader{flags: cmd.Flags()}
	cfg := Config{
		LogLevel: normalizeLevel(r.str("log-level")),
		LogDir:   r.str("log-dir"),
	}
	if r.err != nil {
		return Config{}, r.err
	}
	if err := validateLevel(cfg.LogLevel); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.CabinetPath == "" {
		return fmt.Errorf("--cabinet is required")
	}
	if cfg.All && cfg.Folder != "" {
		return fmt.Errorf("--all and --folder are mutually exclusive")
	}
	if cfg.IMAPHost == "" {
		return fmt.Errorf("--imap-host is required")
	}
	if cfg.IMAPUser == "" {
		return fmt.Errorf("--imap-user is required")
	}
	if cfg.IMAPPass == "" && !cfg.DryRun {
		return fmt.Errorf("IMAP password must be provided via --imap-pass or IMAP_PASS env var")
	}
	if cfg.IMAPPort <= 0 || cfg.IMAPPort > 65535 {
		return fmt.Errorf("--imap-port must be between 1 and 65535")
	}
	includeActive := len(cfg.IncludeHeader) > 0 || len(cfg.IncludeBody) > 0
	excludeActive := len(cfg.ExcludeHeader) > 0 || len(cfg.ExcludeBody) > 0
	if includeActive && excludeActive {
		return fmt.Errorf("include and exclude flags are mutually exclusive")
	}

	return validateLevel(cfg.LogLevel)
}

func validateLevel(level string) error {
	switch level {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("invalid --log-level: %s", level)
}

func normalizeLevel(level string) string {
	level = strings.ToLower(level)
	if level == "warning" {
		level = "warn"
	}
	return level
}

// applyFile loads the --config YAML file, if any, and uses its values for
// every flag not set on the command line. Keys are flag names; lists fill
// repeatable flags. A key without a flag is an error when strict.
func applyFile(cmd *cobra.Command, strict bool) error {
	flags := cmd.Flags()
	if flags.Lookup("config") == nil {
		return nil
	}
	path, err := flags.GetString("config")
	if err != nil || path == "" {
		return err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	values := make(map[string]interface{})
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	for key, value := range values {
		if key == "config" {
			continue
		}
		flag := flags.Lookup(key)
		if flag == nil && !strict {
			continue
		}
		if flag == nil {
			return fmt.Errorf("config file %s: unknown option %q", path, key)
		}
		if flag.Changed {
			continue
		}
		if err := setFlag(flags, key, value); err != nil {
			return fmt.Errorf("config file %s: option %q: %w", path, key, err)
		}
	}
	return nil
}

func setFlag(flags *pflag.FlagSet, key string, value interface{}) error {
	list, ok := value.([]interface{})
	if !ok {
		return flags.Set(key, fmt.Sprint(value))
	}
	for _, item := range list {
		if err := flags.Set(key, fmt.Sprint(item)); err != nil {
			return err
		}
	}
	return nil
}

// flagReader keeps the first lookup error so LoadConfig reads as a list.
type flagReader struct {
	flags *pflag.FlagSet
	err   error
}

func (r *flagReader) str(name string) string {
	v, err := r.flags.GetString(name)
	r.keep(err)
	return v
}

func (r *flagReader) boolean(name string) bool {
	v, err := r.flags.GetBool(name)
	r.keep(err)
	return v
}

func (r *flagReader) integer(name string) int {
	v, err := r.flags.GetInt(name)
	r.keep(err)
	return v
}

func (r *flagReader) array(name string) []string {
	v, err := r.flags.GetStringArray(name)
	r.keep(err)
	return v
}

func (r *flagReader) keep(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

func defaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".pfc-export", "state"), nil
}
