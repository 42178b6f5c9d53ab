package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rollvault/rollvault/internal/domain"
)

const (
	defaultBufferTime     = time.Hour
	defaultMigrationDelay = 7 * 24 * time.Hour
)

type Config struct {
	Platform           string // simulate, binance or bybit
	Pair               domain.Pair
	VaultAccount       string
	Owner              string
	Exchange           string
	RoundStart         time.Time
	RoundEnd           time.Time
	BufferTime         time.Duration
	LimitPrice         decimal.Decimal
	MigrationDelay     time.Duration
	RestrictedRollover bool
	WebAddr            string
	AuditDir           string
}

type ConfigTmp struct {
	Platform           string        `yaml:"platform"`
	Pair               string        `yaml:"pair"`
	VaultAccount       string        `yaml:"vault_account"`
	Owner              string        `yaml:"owner"`
	Exchange           string        `yaml:"exchange"`
	RoundStart         int64         `yaml:"round_start"`
	RoundEnd           int64         `yaml:"round_end"`
	BufferTime         time.Duration `yaml:"buffer_time"`
	LimitPrice         string        `yaml:"limit_price"`
	MigrationDelay     time.Duration `yaml:"migration_delay,omitempty"`
	OpenRollover       bool          `yaml:"open_rollover,omitempty"`
	WebAddr            string        `yaml:"web_addr,omitempty"`
	AuditDir           string        `yaml:"audit_dir,omitempty"`
}

// Get loads the configuration from the YAML file named by --config, or from
// CLI flags when no file is given.
func Get() (Config, error) {
	configPath := flag.String("config", "", "path to yaml config")
	pairFlag := flag.String("pair", "ETH_USDC", "vault pair, example: ETH_USDC")
	platform := flag.String("platform", "simulate", "swap executor platform: simulate, binance or bybit")
	vaultAccount := flag.String("vault", "vault", "vault ledger account")
	owner := flag.String("owner", "owner", "owner authority account")
	exchange := flag.String("exchange", "exchange", "options exchange authority account")
	roundStart := flag.Int64("roundstart", 0, "unix time the first round opens")
	roundEnd := flag.Int64("roundend", 0, "unix time the first round ends")
	buffer := flag.Duration("buffertime", defaultBufferTime, "cool-down after round end")
	limitPrice := flag.String("limitprice", "0", "minimum option premium per unit")
	migrationDelay := flag.Duration("migrationdelay", defaultMigrationDelay, "timelock before a scheduled migration may execute")
	openRollover := flag.Bool("openrollover", false, "allow anyone to trigger rollover")
	webAddr := flag.String("webaddr", ":8080", "status/audit web server address")
	auditDir := flag.String("auditdir", "./wal/audit", "audit WAL directory")
	flag.Parse()

	if *configPath != "" {
		return getYaml(*configPath)
	}

	pair, err := pairFromString(*pairFlag)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --pair provided, --pair=%s", *pairFlag)
	}
	limit, err := decimal.NewFromString(*limitPrice)
	if err != nil {
		return Config{}, fmt.Errorf("invalid --limitprice provided, --limitprice=%s", *limitPrice)
	}

	cfg := Config{
		Platform:           *platform,
		Pair:               pair,
		VaultAccount:       *vaultAccount,
		Owner:              *owner,
		Exchange:           *exchange,
		RoundStart:         time.Unix(*roundStart, 0),
		RoundEnd:           time.Unix(*roundEnd, 0),
		BufferTime:         *buffer,
		LimitPrice:         limit,
		MigrationDelay:     *migrationDelay,
		RestrictedRollover: !*openRollover,
		WebAddr:            *webAddr,
		AuditDir:           *auditDir,
	}
	return cfg, validate(cfg)
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, err
	}

	pair, err := pairFromString(tmp.Pair)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'pair' param in yaml config: %s, error: %w", tmp.Pair, err)
	}

	limit := decimal.Zero
	if tmp.LimitPrice != "" {
		limit, err = decimal.NewFromString(tmp.LimitPrice)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'limit_price' param in yaml config: %s", tmp.LimitPrice)
		}
	}

	cfg := Config{
		Platform:           tmp.Platform,
		Pair:               pair,
		VaultAccount:       tmp.VaultAccount,
		Owner:              tmp.Owner,
		Exchange:           tmp.Exchange,
		RoundStart:         time.Unix(tmp.RoundStart, 0),
		RoundEnd:           time.Unix(tmp.RoundEnd, 0),
		BufferTime:         tmp.BufferTime,
		LimitPrice:         limit,
		MigrationDelay:     tmp.MigrationDelay,
		RestrictedRollover: !tmp.OpenRollover,
		WebAddr:            tmp.WebAddr,
		AuditDir:           tmp.AuditDir,
	}
	if cfg.Platform == "" {
		cfg.Platform = "simulate"
	}
	if cfg.BufferTime == 0 {
		cfg.BufferTime = defaultBufferTime
	}
	if cfg.MigrationDelay == 0 {
		cfg.MigrationDelay = defaultMigrationDelay
	}
	if cfg.WebAddr == "" {
		cfg.WebAddr = ":8080"
	}
	return cfg, validate(cfg)
}

func validate(cfg Config) error {
	switch cfg.Platform {
	case "simulate", "binance", "bybit":
	default:
		return fmt.Errorf("unsupported platform: %s", cfg.Platform)
	}
	if cfg.VaultAccount == "" || cfg.Owner == "" || cfg.Exchange == "" {
		return fmt.Errorf("vault, owner and exchange accounts are required")
	}
	if !cfg.RoundStart.Before(cfg.RoundEnd) {
		return fmt.Errorf("round_start must be before round_end")
	}
	if cfg.BufferTime < 0 {
		return fmt.Errorf("buffer_time must not be negative")
	}
	if cfg.LimitPrice.IsNegative() {
		return fmt.Errorf("limit_price must not be negative")
	}
	return nil
}

func pairFromString(s string) (domain.Pair, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return domain.Pair{}, fmt.Errorf("pair must look like ETH_USDC, got %s", s)
	}
	return domain.Pair{Primary: parts[0], Settlement: parts[1]}, nil
}
