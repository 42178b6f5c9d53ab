package setup

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rollvault/rollvault/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard.
func RunTUI() error {
	var (
		platform       string
		pair           string
		vaultAccount   string
		owner          string
		exchange       string
		roundStartStr  string
		roundLengthStr string
		bufferStr      string
		limitPriceStr  string
		migrationStr   string
		openRollover   bool
		webAddr        string
		confirm        bool
	)

	fmt.Print("\033[H\033[2J") // clear screen
	fmt.Println(headerStyle.Render("Rollvault Setup"))

	// step 1: swap platform
	fmt.Println(stepStyle.Render("Step 1: Swap Platform"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should rollover swaps execute?").
				Options(
					huh.NewOption("Simulate (in-memory, no keys needed)", "simulate"),
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
				).
				Value(&platform),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 2: vault pair
	fmt.Println(stepStyle.Render("Step 2: Vault Pair"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Vault pair (primary_settlement)").
				Placeholder("ETH_USDC").
				Value(&pair).
				Validate(func(s string) error {
					parts := strings.Split(s, "_")
					if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
						return fmt.Errorf("pair must look like ETH_USDC")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 3: authorities
	fmt.Println(stepStyle.Render("Step 3: Authorities"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Vault ledger account").
				Placeholder("vault").
				Value(&vaultAccount).
				Validate(nonEmpty("vault account")),
			huh.NewInput().
				Title("Owner account (admin authority)").
				Placeholder("owner").
				Value(&owner).
				Validate(nonEmpty("owner account")),
			huh.NewInput().
				Title("Exchange account (option buyer authority)").
				Placeholder("exchange").
				Value(&exchange).
				Validate(nonEmpty("exchange account")),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 4: round window
	fmt.Println(stepStyle.Render("Step 4: Round Window"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("First round start (RFC3339, empty = 5 minutes from now)").
				Placeholder(time.Now().Add(5*time.Minute).Format(time.RFC3339)).
				Value(&roundStartStr).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					if _, err := time.Parse(time.RFC3339, s); err != nil {
						return fmt.Errorf("must be RFC3339, example: 2026-09-01T00:00:00Z")
					}
					return nil
				}),
			huh.NewInput().
				Title("Round length (Go duration)").
				Placeholder("168h").
				Value(&roundLengthStr).
				Validate(validateDuration(time.Minute)),
			huh.NewInput().
				Title("Buffer time after round end (Go duration)").
				Placeholder("1h").
				Value(&bufferStr).
				Validate(validateDuration(0)),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 5: economics
	fmt.Println(stepStyle.Render("Step 5: Economics"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Minimum option premium per unit (limit price)").
				Placeholder("0").
				Value(&limitPriceStr).
				Validate(validatePrice),
		),
	).Run()
	if err != nil {
		return err
	}

	// step 6: governance
	fmt.Println(stepStyle.Render("Step 6: Governance"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Migration timelock delay (Go duration)").
				Placeholder("168h").
				Value(&migrationStr).
				Validate(validateDuration(time.Minute)),
			huh.NewConfirm().
				Title("Allow anyone to trigger rollover?").
				Affirmative("Yes, open rollover").
				Negative("No, owner only").
				Value(&openRollover),
			huh.NewInput().
				Title("Web server address").
				Placeholder(":8080").
				Value(&webAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	if roundStartStr == "" {
		roundStartStr = time.Now().Add(5 * time.Minute).Format(time.RFC3339)
	}
	if roundLengthStr == "" {
		roundLengthStr = "168h"
	}
	if bufferStr == "" {
		bufferStr = "1h"
	}
	if limitPriceStr == "" {
		limitPriceStr = "0"
	}
	if migrationStr == "" {
		migrationStr = "168h"
	}
	if webAddr == "" {
		webAddr = ":8080"
	}

	roundStart, _ := time.Parse(time.RFC3339, roundStartStr)
	roundLength, _ := time.ParseDuration(roundLengthStr)
	buffer, _ := time.ParseDuration(bufferStr)
	migrationDelay, _ := time.ParseDuration(migrationStr)
	roundEnd := roundStart.Add(roundLength)

	rolloverMode := "owner only"
	if openRollover {
		rolloverMode = "open"
	}

	summary := fmt.Sprintf(
		"Platform: %s\nPair: %s\nVault: %s\nOwner: %s\nExchange: %s\nRound: %s .. %s\nBuffer: %s\nLimit price: %s\nMigration delay: %s\nRollover: %s\nWeb: %s",
		platform, pair, vaultAccount, owner, exchange,
		roundStart.Format(time.RFC3339), roundEnd.Format(time.RFC3339),
		buffer, limitPriceStr, migrationDelay, rolloverMode, webAddr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}

	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	cfgTmp := config.ConfigTmp{
		Platform:       platform,
		Pair:           pair,
		VaultAccount:   vaultAccount,
		Owner:          owner,
		Exchange:       exchange,
		RoundStart:     roundStart.Unix(),
		RoundEnd:       roundEnd.Unix(),
		BufferTime:     buffer,
		LimitPrice:     limitPriceStr,
		MigrationDelay: migrationDelay,
		OpenRollover:   openRollover,
		WebAddr:        webAddr,
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s\nStarting vault...", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func nonEmpty(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func validateDuration(min time.Duration) func(string) error {
	return func(s string) error {
		if s == "" {
			return nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("must be a Go duration, example: 168h")
		}
		if d < min {
			return fmt.Errorf("must be at least %s", min)
		}
		return nil
	}
}

func validatePrice(s string) error {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() {
		return fmt.Errorf("must not be negative")
	}
	return nil
}
