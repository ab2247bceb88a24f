package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"gridbot/config"
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

// RunTUI launches the terminal configuration wizard and writes the result
// to config.gen.yaml.
func RunTUI() error {
	var (
		platform      string
		pair          string
		lowerStr      string
		upperStr      string
		gridCountStr  string
		investmentStr string
		intervalStr   string
		minProfitStr  string
		stopLossStr   string
		confirm       bool
	)

	// defaults
	gridCountStr = "10"
	intervalStr = "15s"
	minProfitStr = "0.01"
	stopLossStr = "0"

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("GRIDBOT CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's lay out your grid.\n"))

	fmt.Println(stepStyle.Render("STEP 1: PLATFORM"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Exchange Platform").
				Options(
					huh.NewOption("Binance", "binance"),
					huh.NewOption("Bybit", "bybit"),
				).
				Value(&platform),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GRIDBOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: ASSET"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Trading Pair").
				Description("Must contain underscore (e.g. BTC_USDT)").
				Value(&pair).
				Validate(func(s string) error {
					if !strings.Contains(s, "_") {
						return fmt.Errorf("invalid format: must be BASE_QUOTE (e.g. BTC_USDT)")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GRIDBOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: GRID RANGE"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Lower Price").
				Description("Bottom of the grid range").
				Value(&lowerStr).
				Validate(validatePositiveDecimal),
			huh.NewInput().
				Title("Upper Price").
				Description("Top of the grid range").
				Value(&upperStr).
				Validate(validatePositiveDecimal),
			huh.NewInput().
				Title("Grid Count").
				Description("Number of levels (min 2)").
				Value(&gridCountStr).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil {
						return fmt.Errorf("must be an integer")
					}
					if n < 2 {
						return fmt.Errorf("must be at least 2")
					}
					return nil
				}),
			huh.NewInput().
				Title("Total Investment").
				Description("Quote currency committed across all levels").
				Value(&investmentStr).
				Validate(validatePositiveDecimal),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GRIDBOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 4: TIMING AND RISK"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Check Interval").
				Description("Order reconciliation cadence (e.g. 15s)").
				Value(&intervalStr).
				Validate(func(s string) error {
					_, err := time.ParseDuration(s)
					return err
				}),
			huh.NewInput().
				Title("Minimum Profit Fraction").
				Description("e.g. 0.01 for 1%").
				Value(&minProfitStr),
			huh.NewInput().
				Title("Stop Loss Fraction").
				Description("Halt when price drops this far below the range; 0 disables").
				Value(&stopLossStr),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("GRIDBOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Platform: %s\nPair: %s\nRange: [%s, %s]\nLevels: %s\nInvestment: %s\nInterval: %s\n",
		platform, pair, lowerStr, upperStr, gridCountStr, investmentStr, intervalStr,
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

	gridCount, _ := strconv.Atoi(gridCountStr)

	file := config.File{
		Pairs: []config.Entry{{
			Platform:        platform,
			Pair:            pair,
			LowerPrice:      lowerStr,
			UpperPrice:      upperStr,
			GridCount:       gridCount,
			TotalInvestment: investmentStr,
			CheckInterval:   intervalStr,
			MinProfit:       minProfitStr,
			StopLoss:        stopLossStr,
		}},
	}

	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\nConfiguration saved to %s\nStarting bot...", filename)))
	time.Sleep(1500 * time.Millisecond) // small pause to read success message
	return nil
}

func validatePositiveDecimal(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() {
		return fmt.Errorf("must be positive")
	}
	return nil
}
