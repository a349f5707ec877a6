package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/gmsas95/dosetrack/internal/app"
	"github.com/gmsas95/dosetrack/internal/medication"
)

var Version = "dev"

// HandleAddCommand registers a new medication interactively:
// dosetrack add <name> <dosage> [time ...]
func HandleAddCommand(application *app.App, args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: dosetrack add <name> <dosage> [time ...]")
		fmt.Println("Example: dosetrack add Lisinopril 10mg 08:00 20:00")
		os.Exit(1)
	}

	name := args[0]
	dosage := args[1]
	times := args[2:]

	reader := bufio.NewReader(os.Stdin)

	if len(times) == 0 {
		fmt.Print("Reminder times (HH:MM, space separated): ")
		line, _ := reader.ReadString('\n')
		times = strings.Fields(strings.TrimSpace(line))
	}

	fmt.Print("Pills in supply (blank to skip): ")
	line, _ := reader.ReadString('\n')
	pills, _ := strconv.Atoi(strings.TrimSpace(line))

	fmt.Print("Instructions (blank to skip): ")
	instructions, _ := reader.ReadString('\n')

	med := &medication.Medication{
		Name:           name,
		Dosage:         dosage,
		Times:          times,
		Instructions:   strings.TrimSpace(instructions),
		Active:         true,
		PillsRemaining: pills,
	}

	if err := application.Coordinator.AddMedication(context.Background(), med); err != nil {
		fmt.Printf("Error adding medication: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Added '%s' %s at %s\n", med.Name, med.Dosage, strings.Join(med.TimesList(), ", "))
}

// HandleListCommand prints medications: dosetrack list [--all]
func HandleListCommand(application *app.App, args []string) {
	activeOnly := true
	for _, a := range args {
		if a == "--all" || a == "-a" {
			activeOnly = false
		}
	}

	meds, err := application.Coordinator.Medications(context.Background(), activeOnly)
	if err != nil {
		fmt.Printf("Error listing medications: %v\n", err)
		os.Exit(1)
	}

	if len(meds) == 0 {
		fmt.Println("No medications found. Add one with: dosetrack add <name> <dosage>")
		return
	}

	fmt.Println("Medications:")
	fmt.Println("============")
	for _, m := range meds {
		status := "💊"
		if !m.Active {
			status = "⏸️"
		}
		line := fmt.Sprintf("%s [%d] %s %s - %s", status, m.ID, m.Name, m.Dosage, strings.Join(m.TimesList(), ", "))
		if m.NeedsRefill() {
			line += fmt.Sprintf("  ⚠️  refill soon (%d left)", m.PillsRemaining)
		}
		fmt.Println(line)
	}
}

// HandleTodayCommand prints today's dose ledger
func HandleTodayCommand(application *app.App) {
	date := time.Now().Format(medication.DateFormat)
	doses, err := application.Coordinator.Ledger(context.Background(), date)
	if err != nil {
		fmt.Printf("Error loading today's doses: %v\n", err)
		os.Exit(1)
	}

	if len(doses) == 0 {
		fmt.Println("Nothing scheduled for today.")
		return
	}

	fmt.Printf("Doses for %s:\n", date)
	fmt.Println("====================")
	for _, d := range doses {
		mark := "⏳"
		switch d.Status {
		case medication.StatusTaken:
			mark = "✓"
		case medication.StatusSkipped:
			mark = "⏭️"
		case medication.StatusMissed:
			mark = "✗"
		}
		fmt.Printf("%s [%d] %s at %s (%s)\n", mark, d.ID, d.MedicationName, d.ScheduledAt.Format("15:04"), d.Status)
	}
}

// HandleTakeCommand marks a dose taken: dosetrack take <dose-id>
func HandleTakeCommand(application *app.App, args []string) {
	id := parseDoseID(args, "take")
	if err := application.Coordinator.MarkDoseTaken(context.Background(), id); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Dose %d marked taken\n", id)
}

// HandleSkipCommand marks a dose skipped: dosetrack skip <dose-id>
func HandleSkipCommand(application *app.App, args []string) {
	id := parseDoseID(args, "skip")
	if err := application.Coordinator.MarkDoseSkipped(context.Background(), id); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Dose %d skipped\n", id)
}

func parseDoseID(args []string, verb string) int64 {
	if len(args) < 1 {
		fmt.Printf("Usage: dosetrack %s <dose-id>\n", verb)
		fmt.Println("Find dose IDs with: dosetrack today")
		os.Exit(1)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Printf("Invalid dose id %q\n", args[0])
		os.Exit(1)
	}
	return id
}

// HandleStatsCommand prints adherence for a date: dosetrack stats [date]
func HandleStatsCommand(application *app.App, args []string) {
	date := time.Now().Format(medication.DateFormat)
	if len(args) > 0 {
		if _, err := time.Parse(medication.DateFormat, args[0]); err != nil {
			fmt.Printf("Invalid date %q, expected YYYY-MM-DD\n", args[0])
			os.Exit(1)
		}
		date = args[0]
	}

	agg, err := application.Coordinator.DailyAggregate(context.Background(), date)
	if err != nil {
		fmt.Printf("Error loading stats: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Adherence for %s:\n", date)
	if agg.Total == 0 {
		fmt.Println("No doses scheduled.")
		return
	}
	percent := float64(agg.Taken) / float64(agg.Total) * 100
	fmt.Printf("%d of %d doses taken (%.0f%%)\n", agg.Taken, agg.Total, percent)
}

// HandleConfigCommand manages the config file: dosetrack config [init|show]
func HandleConfigCommand(args []string) {
	home, err := os.UserHomeDir()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	configDir := filepath.Join(home, ".dosetrack")
	configPath := filepath.Join(configDir, "dosetrack.yaml")

	if len(args) == 0 {
		args = []string{"show"}
	}

	switch args[0] {
	case "init":
		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("Config already exists at %s\n", configPath)
			return
		}
		if err := os.MkdirAll(configDir, 0755); err != nil {
			fmt.Printf("Error creating config directory: %v\n", err)
			os.Exit(1)
		}

		fmt.Print("API password (hidden, blank for open access): ")
		password, _ := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()

		cfg := map[string]interface{}{
			"server": map[string]interface{}{
				"address": "127.0.0.1",
				"port":    8475,
			},
			"scheduler": map[string]interface{}{
				"sweep_interval":        5,
				"missed_grace_period":   120,
				"refill_alert_cooldown": 24,
			},
			"security": map[string]interface{}{
				"api_password": string(password),
			},
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Printf("Error encoding config: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(configPath, data, 0600); err != nil {
			fmt.Printf("Error writing config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Wrote %s\n", configPath)

	case "show":
		data, err := os.ReadFile(configPath)
		if err != nil {
			fmt.Printf("No config found at %s. Create one with: dosetrack config init\n", configPath)
			return
		}
		fmt.Println(string(data))

	default:
		fmt.Println("Usage: dosetrack config [init|show]")
	}
}

func PrintExtendedHelp() {
	fmt.Printf("Dosetrack %s - medication reminders and adherence tracking\n", Version)
	fmt.Println()
	fmt.Println("Usage: dosetrack <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  add <name> <dosage> [time ...]   Add a medication")
	fmt.Println("  list [--all]                     List medications")
	fmt.Println("  today                            Show today's doses")
	fmt.Println("  take <dose-id>                   Mark a dose taken")
	fmt.Println("  skip <dose-id>                   Skip a dose")
	fmt.Println("  stats [date]                     Show adherence for a date")
	fmt.Println("  config [init|show]               Manage configuration")
	fmt.Println("  serve                            Run the reminder server")
	fmt.Println("  version                          Print version")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --config <path>   Config file path")
	fmt.Println("  --data <path>     Data directory")
}
