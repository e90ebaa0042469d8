// Command medtrack is a terminal front end for the MedTrack API. It keeps a
// single bearer token in the user's config directory and drives the session
// manager and record reconciler from internal/client.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"medtrack/internal/client"

	"github.com/joho/godotenv"
)

const usage = `Usage: medtrack <command> [flags]

Commands:
  register -u <username> -p <password>   create an account
  login    -u <username> -p <password>   sign in and store the token
  logout                                 sign out
  status                                 show today's doses
  take <morning|afternoon|evening>       mark a dose as taken
  note <text>                            set today's notes
  history [-days n]                      show the last n days (default 7)
  users                                  list all users (admin)
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	server := os.Getenv("MEDTRACK_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}

	api := client.New(server)
	store, err := client.DefaultTokenStore()
	if err != nil {
		log.Fatalf("cannot locate token store: %v", err)
	}
	session := client.NewSessionManager(api, store)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "register":
		runRegister(ctx, api, args)
	case "login":
		runLogin(ctx, session, args)
	case "logout":
		session.Logout()
		fmt.Println("Logged out.")
	case "status":
		requireSession(ctx, session, api, false)
		runHistory(ctx, api, session, 1)
	case "take":
		requireSession(ctx, session, api, false)
		runTake(ctx, api, session, args)
	case "note":
		requireSession(ctx, session, api, false)
		runNote(ctx, api, session, args)
	case "history":
		fs := flag.NewFlagSet("history", flag.ExitOnError)
		days := fs.Int("days", 7, "number of days to show")
		fs.Parse(args)
		requireSession(ctx, session, api, false)
		runHistory(ctx, api, session, *days)
	case "users":
		requireSession(ctx, session, api, true)
		runUsers(ctx, api, session)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

// requireSession restores the persisted session and enforces the access
// decision before any protected command runs.
func requireSession(ctx context.Context, session *client.SessionManager, api *client.Client, admin bool) {
	session.Restore(ctx)
	switch session.Authorize(admin) {
	case client.Allow:
		api.SetToken(session.Token())
	case client.DenyLogin:
		log.Fatal("not logged in; run: medtrack login -u <username> -p <password>")
	case client.DenyHome:
		log.Fatal("admin access required")
	}
}

func credentials(name string, args []string) (string, string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	fs.Parse(args)
	if *username == "" || *password == "" {
		log.Fatalf("%s requires -u and -p", name)
	}
	return *username, *password
}

func runRegister(ctx context.Context, api *client.Client, args []string) {
	username, password := credentials("register", args)
	user, err := api.Register(ctx, username, password)
	if err != nil {
		log.Fatalf("registration failed: %v", err)
	}
	fmt.Printf("Registered %s (id %d). You can now log in.\n", user.Username, user.ID)
}

func runLogin(ctx context.Context, session *client.SessionManager, args []string) {
	username, password := credentials("login", args)
	if !session.Login(ctx, username, password) {
		log.Fatal("login failed")
	}
	fmt.Printf("Logged in as %s.\n", session.User().Username)
}

func today() string {
	return time.Now().Format("2006-01-02")
}

// todayWindow builds a one-day window for today from the recent records.
func todayWindow(ctx context.Context, api *client.Client, session *client.SessionManager) *client.Window {
	recent, err := api.ListRecent(ctx)
	if err != nil {
		fatalAPI(session, err)
	}
	w, err := client.NewWindow(api, today(), 1, recent)
	if err != nil {
		log.Fatalf("failed to build window: %v", err)
	}
	return w
}

func runTake(ctx context.Context, api *client.Client, session *client.SessionManager, args []string) {
	if len(args) != 1 {
		log.Fatal("take requires one of: morning, afternoon, evening")
	}
	slot := args[0]
	switch slot {
	case "morning", "afternoon", "evening":
	default:
		log.Fatalf("unknown dose slot %q", slot)
	}

	w := todayWindow(ctx, api, session)
	rec, _ := w.Day(today())
	rec, err := client.ApplyEdit(rec, slot+"_taken", true)
	if err != nil {
		log.Fatalf("edit failed: %v", err)
	}
	if err := w.Commit(ctx, rec); err != nil {
		fatalAPI(session, err)
	}
	fmt.Printf("Marked %s dose as taken for %s.\n", slot, today())
}

func runNote(ctx context.Context, api *client.Client, session *client.SessionManager, args []string) {
	if len(args) != 1 {
		log.Fatal("note requires the note text as a single argument")
	}

	w := todayWindow(ctx, api, session)
	rec, _ := w.Day(today())
	rec, err := client.ApplyEdit(rec, "notes", args[0])
	if err != nil {
		log.Fatalf("edit failed: %v", err)
	}
	if err := w.Commit(ctx, rec); err != nil {
		fatalAPI(session, err)
	}
	fmt.Printf("Saved note for %s.\n", today())
}

func runHistory(ctx context.Context, api *client.Client, session *client.SessionManager, days int) {
	records, err := api.ListRecords(ctx)
	if err != nil {
		fatalAPI(session, err)
	}
	window, err := client.BuildWindow(today(), days, records)
	if err != nil {
		log.Fatalf("failed to build window: %v", err)
	}

	fmt.Printf("%-12s %-8s %-10s %-8s %s\n", "date", "morning", "afternoon", "evening", "notes")
	for _, day := range window {
		fmt.Printf("%-12s %-8s %-10s %-8s %s\n",
			day.Date, mark(day.MorningTaken), mark(day.AfternoonTaken), mark(day.EveningTaken), day.Notes)
	}
}

func runUsers(ctx context.Context, api *client.Client, session *client.SessionManager) {
	users, err := api.ListAllUsers(ctx)
	if err != nil {
		fatalAPI(session, err)
	}
	fmt.Printf("%-5s %-20s %-6s %s\n", "id", "username", "admin", "active")
	for _, u := range users {
		fmt.Printf("%-5d %-20s %-6v %v\n", u.ID, u.Username, u.IsAdmin, u.IsActive)
	}
}

func mark(taken bool) string {
	if taken {
		return "x"
	}
	return "-"
}

// fatalAPI reports an API failure; an authorization failure also drops the
// stale session so the next invocation starts Anonymous.
func fatalAPI(session *client.SessionManager, err error) {
	if session.HandleAuthError(err) {
		log.Fatal("session expired; please log in again")
	}
	log.Fatalf("request failed: %v", err)
}
