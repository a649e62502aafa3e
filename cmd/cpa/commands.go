package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dgellow/cpa-front/internal"
	"github.com/dgellow/cpa-front/internal/academy"
	"github.com/dgellow/cpa-front/internal/mcptools"
)

const envPassword = "CPA_PASSWORD"

var stdin = bufio.NewReader(os.Stdin)

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet("cpa "+name, flag.ContinueOnError)
}

func prompt(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	line, err := stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

// password takes the flag, then CPA_PASSWORD, then a line from stdin
func password(flagValue, label string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if v := os.Getenv(envPassword); v != "" {
		return v, nil
	}
	return prompt(label)
}

func runLogin(ctx context.Context, app *internal.CPAFront, args []string) error {
	fs := newFlagSet("login")
	username := fs.String("username", "", "account username")
	pw := fs.String("password", "", "account password (defaults to $"+envPassword+" or a prompt)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *username == "" {
		if *username, err = prompt("Username"); err != nil {
			return err
		}
	}
	secret, err := password(*pw, "Password")
	if err != nil {
		return err
	}
	if err := app.Academy().Login(ctx, *username, secret); err != nil {
		return err
	}
	fmt.Printf("Signed in as %s\n", *username)
	return nil
}

func runRegister(ctx context.Context, app *internal.CPAFront, args []string) error {
	fs := newFlagSet("register")
	var req academy.RegisterRequest
	fs.StringVar(&req.Username, "username", "", "username (optional)")
	fs.StringVar(&req.Email, "email", "", "email address")
	fs.StringVar(&req.FirstName, "first-name", "", "first name")
	fs.StringVar(&req.LastName, "last-name", "", "last name")
	pw := fs.String("password", "", "password (defaults to $"+envPassword+" or a prompt)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if req.Email == "" {
		return errors.New("-email is required")
	}

	var err error
	if req.Password, err = password(*pw, "Password"); err != nil {
		return err
	}
	if *pw != "" || os.Getenv(envPassword) != "" {
		req.Password2 = req.Password
	} else if req.Password2, err = prompt("Confirm password"); err != nil {
		return err
	}

	user, err := app.Academy().Register(ctx, req)
	if err != nil {
		return err
	}
	if user != nil {
		fmt.Printf("Registered %s (%s)\n", user.Username, user.Email)
	} else {
		fmt.Printf("Registered %s\n", req.Email)
	}
	return nil
}

func runGoogleLogin(ctx context.Context, app *internal.CPAFront, args []string) error {
	if err := newFlagSet("google-login").Parse(args); err != nil {
		return err
	}
	flow, err := app.GoogleFlow()
	if err != nil {
		return err
	}
	flow.OnAuthURL = func(url string) {
		fmt.Fprintf(os.Stderr, "Opening Google sign-in. If no browser opens, visit:\n  %s\n", url)
	}
	tok, err := flow.Run(ctx)
	if err != nil {
		return err
	}
	user, err := app.Academy().ExchangeGoogleToken(ctx, tok)
	if err != nil {
		return err
	}
	if user != nil {
		fmt.Printf("Signed in as %s\n", user.Username)
	} else {
		fmt.Println("Signed in with Google")
	}
	return nil
}

func runLogout(ctx context.Context, app *internal.CPAFront, args []string) error {
	if err := newFlagSet("logout").Parse(args); err != nil {
		return err
	}
	if err := app.Academy().Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Signed out")
	return nil
}

func runStatus(ctx context.Context, app *internal.CPAFront, args []string) error {
	if err := newFlagSet("status").Parse(args); err != nil {
		return err
	}
	st, err := app.Academy().Status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("API:        %s\n", app.Client().BaseURL())
	profiles, multi, err := app.Profiles(ctx)
	if err != nil {
		return err
	}
	if multi {
		fmt.Printf("Profile:    %s (stored: %s)\n", app.Config().Session.Namespace, strings.Join(profiles, ", "))
	}
	if !st.LoggedIn {
		fmt.Println("Session:    signed out")
		return nil
	}
	fmt.Printf("Session:    signed in as %s", orUnknown(st.Username))
	if st.IsAdmin {
		fmt.Print(" (admin)")
	}
	fmt.Println()
	if !st.ExpiresAt.IsZero() {
		state := "valid"
		if st.Expired {
			state = "expired"
		}
		fmt.Printf("Access:     %s until %s\n", state, st.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Printf("Refreshable: %t\n", st.CanRefresh)
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown user"
	}
	return s
}

func runSubjects(ctx context.Context, app *internal.CPAFront, args []string) error {
	if err := newFlagSet("subjects").Parse(args); err != nil {
		return err
	}
	subjects, err := app.Academy().ListSubjects(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, s := range subjects {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", s.ID, s.Name, s.Slug)
		for _, u := range s.Units {
			fmt.Fprintf(tw, "\t  %s\t%s (unit %d)\n", u.Code, u.Title, u.ID)
		}
	}
	return tw.Flush()
}

func runUnits(ctx context.Context, app *internal.CPAFront, args []string) error {
	fs := newFlagSet("units")
	search := fs.String("search", "", "filter by title or code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	units, err := app.Academy().ListUnits(ctx, academy.UnitQuery{Search: *search})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, u := range units {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", u.ID, u.Code, u.Title)
	}
	return tw.Flush()
}

func runMaterials(ctx context.Context, app *internal.CPAFront, args []string) error {
	fs := newFlagSet("materials")
	var q academy.MaterialQuery
	fs.IntVar(&q.Unit, "unit", 0, "only materials of this unit ID")
	fs.StringVar(&q.Search, "search", "", "search title, description and tags")
	fs.StringVar(&q.Sort, "sort", "", "sort order, e.g. "+academy.SortByDownloads)
	fs.IntVar(&q.Page, "page", 0, "page number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	page, err := app.Academy().ListMaterials(ctx, q)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, m := range page.Results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d downloads\n", m.ID, m.Title, m.FileType, m.DownloadCount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if page.Next != "" {
		fmt.Printf("%d materials in total, more with -page\n", page.Count)
	}
	return nil
}

func runDownload(ctx context.Context, app *internal.CPAFront, args []string) error {
	fs := newFlagSet("download")
	concurrency := fs.Int("concurrency", app.Config().Downloads.Concurrency, "parallel downloads")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("at least one material ID is required")
	}

	paths := make([]string, 0, fs.NArg())
	for _, arg := range fs.Args() {
		id, err := strconv.Atoi(arg)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid material ID %q", arg)
		}
		paths = append(paths, academy.MaterialDownloadPath(id))
	}

	outcomes, err := app.Downloader().DownloadMany(ctx, paths, *concurrency)
	for _, o := range outcomes {
		if o == nil {
			continue
		}
		if o.RedirectURL != "" && o.Path == o.RedirectURL {
			fmt.Printf("Opened %s\n", o.RedirectURL)
			continue
		}
		fmt.Printf("Saved %s\n", o.Path)
	}
	return err
}

func runQuiz(ctx context.Context, app *internal.CPAFront, args []string) error {
	fs := newFlagSet("quiz")
	show := fs.Bool("show", false, "only print the questions")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("exactly one question set ID is required")
	}
	id, err := strconv.Atoi(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("invalid question set ID %q", fs.Arg(0))
	}

	set, err := app.Academy().GetQuestionSet(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s\n\n", set.Title)

	answers := make([]academy.Answer, 0, len(set.Questions))
	for i, q := range set.Questions {
		fmt.Printf("%d. %s\n", i+1, q.Text)
		for _, c := range q.Choices {
			fmt.Printf("   %s) %s\n", c.ID, c.Text)
		}
		if *show {
			fmt.Println()
			continue
		}
		choice, err := prompt("Answer")
		if err != nil {
			return err
		}
		if choice != "" {
			answers = append(answers, academy.Answer{QuestionID: q.ID, Choice: strings.ToUpper(choice)})
		}
		fmt.Println()
	}
	if *show {
		return nil
	}

	attempt, err := app.Academy().SubmitAttempt(ctx, set.ID, answers)
	if err != nil {
		return err
	}
	fmt.Printf("Score: %d/%d (%.0f%%)\n", attempt.Score, attempt.Total, attempt.Percent())
	return nil
}

func runMCP(ctx context.Context, app *internal.CPAFront, args []string) error {
	if err := newFlagSet("mcp").Parse(args); err != nil {
		return err
	}
	return mcptools.ServeStdio(app.MCPServer())
}
