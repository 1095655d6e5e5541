package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/newsdesk/internal/app"
	"github.com/TobiSchelling/newsdesk/internal/config"
	"github.com/TobiSchelling/newsdesk/internal/logging"
	"github.com/TobiSchelling/newsdesk/internal/news"
	"github.com/TobiSchelling/newsdesk/internal/preferences"
	"github.com/TobiSchelling/newsdesk/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "newsdesk",
	Short:   "A personal news reader",
	Long:    "newsdesk lists, filters, searches and bookmarks news articles, ordered by your preferred categories.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			logger = logging.New("info")
			return nil
		}

		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger = logging.New(level)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(articlesCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(categoryCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(bookmarksCmd)
	rootCmd.AddCommand(prefsCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads the resolved config file. Without an explicit --config and
// with no file in the search path, the built-in defaults are used.
func loadConfig() (*config.Config, error) {
	path, err := config.ResolveConfigPath(configPath)
	if err != nil {
		if configPath != "" {
			return nil, err
		}
		return config.Default(), nil
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return c, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("newsdesk", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/newsdesk/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to switch to RSS feeds or change the data directory.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and session status",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.DB.GetStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Database:")
		fmt.Printf("  Path: %s\n", s.DB.Path())
		fmt.Printf("  Size: %s\n", humanize.Bytes(uint64(stats.SizeBytes)))
		fmt.Printf("  Stored keys: %d\n", stats.Keys)
		fmt.Println("\nArticles:")
		fmt.Printf("  Source: %s\n", cfg.Catalog.Source)
		fmt.Printf("  Loaded: %d\n", len(s.News.Articles()))
		fmt.Printf("  Bookmarked: %d\n", len(s.News.Bookmarks()))
		fmt.Println("\nSession:")
		if u, ok := s.Auth.Current(); ok {
			fmt.Printf("  Signed in as: %s <%s>\n", u.Name, u.Email)
		} else {
			fmt.Println("  Not signed in")
		}
		prefs := s.Preferences.Get()
		fmt.Printf("  Categories: %s\n", formatCategories(prefs.Categories))
		fmt.Printf("  Personalization: %s\n", onOff(prefs.AIPersonalization))
		return nil
	},
}

// --- reading commands ---

var articlesCategory string

var articlesCmd = &cobra.Command{
	Use:   "articles",
	Short: "List articles in feed order",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		if articlesCategory != "" {
			s.News.SetCategoryFilter(articlesCategory)
		}
		printArticles(s.News, s.News.Articles(), "No articles in this category.")
		return nil
	},
}

func init() {
	articlesCmd.Flags().StringVar(&articlesCategory, "category", "", "Only show articles in this category")
}

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a single article",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		article, ok := findArticle(s.News, args[0])
		if !ok {
			return fmt.Errorf("article %s not found", args[0])
		}

		fmt.Printf("%s\n", article.Title)
		fmt.Printf("%s · %s", news.CategoryName(article.Category), article.Author)
		if article.PublishedAt != "" {
			fmt.Printf(" · %s", article.PublishedAt)
		}
		fmt.Println()
		if s.News.IsBookmarked(article.ID) {
			fmt.Println("[bookmarked]")
		}
		fmt.Printf("\n%s\n\n", article.Content)
		fmt.Println(article.URL)
		return nil
	},
}

var categoryCmd = &cobra.Command{
	Use:   "category [id]",
	Short: "List all articles in a category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !news.IsCategory(args[0]) {
			return fmt.Errorf("unknown category %q (choose from: %s)", args[0], categoryIDs())
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Printf("%s\n\n", news.CategoryName(args[0]))
		printArticles(s.News, s.News.GetByCategory(args[0]), "No articles in this category.")
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search titles, content, summaries, categories and authors",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return errors.New("search query must not be empty")
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		results, err := s.News.Search(cmd.Context(), query)
		if err != nil {
			return err
		}
		fmt.Printf("%d result(s) for %q\n\n", len(results), query)
		printArticles(s.News, results, "No articles match.")
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reload the articles in a new order",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.News.Refresh(cmd.Context()); err != nil {
			return err
		}
		printArticles(s.News, s.News.Articles(), "No articles.")
		return nil
	},
}

// --- bookmarks command ---

var bookmarksCmd = &cobra.Command{
	Use:   "bookmarks",
	Short: "Manage bookmarked articles",
}

var bookmarksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bookmarked articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		printArticles(s.News, s.News.Bookmarks(), "No bookmarks yet. Add one with: newsdesk bookmarks toggle [id]")
		return nil
	},
}

var bookmarksToggleCmd = &cobra.Command{
	Use:   "toggle [id]",
	Short: "Bookmark an article, or remove it if already bookmarked",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		article, ok := findArticle(s.News, args[0])
		if !ok {
			return fmt.Errorf("article %s not found", args[0])
		}
		if s.News.ToggleBookmark(cmd.Context(), article.ID) {
			fmt.Printf("Bookmarked: %s\n", article.Title)
		} else {
			fmt.Printf("Removed bookmark: %s\n", article.Title)
		}
		return nil
	},
}

var bookmarksRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a bookmark",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		article, ok := findArticle(s.News, args[0])
		if !ok || !s.News.IsBookmarked(article.ID) {
			fmt.Printf("Not bookmarked: %s\n", args[0])
			return nil
		}
		s.News.RemoveBookmark(cmd.Context(), article.ID)
		fmt.Printf("Removed bookmark: %s\n", article.Title)
		return nil
	},
}

var bookmarksClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all bookmarks",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		n := len(s.News.Bookmarks())
		if n == 0 {
			fmt.Println("No bookmarks to clear.")
			return nil
		}
		if !confirm(fmt.Sprintf("Remove all %d bookmarks? [y/N]: ", n)) {
			fmt.Println("Cancelled.")
			return nil
		}
		s.News.ClearBookmarks(cmd.Context())
		fmt.Printf("Cleared %d bookmark(s).\n", n)
		return nil
	},
}

var clearYes bool

func init() {
	bookmarksClearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Do not ask for confirmation")

	bookmarksCmd.AddCommand(bookmarksListCmd)
	bookmarksCmd.AddCommand(bookmarksToggleCmd)
	bookmarksCmd.AddCommand(bookmarksRemoveCmd)
	bookmarksCmd.AddCommand(bookmarksClearCmd)
}

// --- prefs command ---

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or change reading preferences",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show preferences",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		printPrefs(s.Preferences.Get())
		return nil
	},
}

var (
	prefsCategories []string
	prefsAI         bool
	prefsBreaking   bool
)

var prefsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change preferences; unset flags keep their value",
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch preferences.Patch
		flags := cmd.Flags()
		if flags.Changed("categories") {
			for _, c := range prefsCategories {
				if c != "" && !news.IsCategory(c) {
					return fmt.Errorf("unknown category %q (choose from: %s)", c, categoryIDs())
				}
			}
			patch.Categories = append([]string{}, prefsCategories...)
		}
		if flags.Changed("ai") {
			patch.AIPersonalization = &prefsAI
		}
		if flags.Changed("breaking") {
			patch.BreakingNews = &prefsBreaking
		}
		if patch.Categories == nil && patch.AIPersonalization == nil && patch.BreakingNews == nil {
			return errors.New("nothing to change; use --categories, --ai or --breaking")
		}

		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		prefs, err := s.UpdatePreferences(cmd.Context(), patch)
		if err != nil {
			return fmt.Errorf("saving preferences: %w", err)
		}
		printPrefs(prefs)
		return nil
	},
}

func init() {
	prefsSetCmd.Flags().StringSliceVar(&prefsCategories, "categories", nil, "Preferred categories, comma separated (empty clears)")
	prefsSetCmd.Flags().BoolVar(&prefsAI, "ai", true, "Personalize the feed order")
	prefsSetCmd.Flags().BoolVar(&prefsBreaking, "breaking", true, "Breaking news alerts")

	prefsCmd.AddCommand(prefsShowCmd)
	prefsCmd.AddCommand(prefsSetCmd)
}

// --- auth commands ---

var (
	authPassword string
	authName     string
)

var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Sign in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := authPassword
		if password == "" {
			password = prompt("Password: ")
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		u, err := s.Auth.Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		fmt.Printf("Signed in as %s <%s>\n", u.Name, u.Email)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register [email]",
	Short: "Create an account and sign in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := authName
		if name == "" {
			name = prompt("Name: ")
		}
		password := authPassword
		if password == "" {
			password = prompt("Password: ")
		}
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		u, err := s.Auth.Register(cmd.Context(), name, args[0], password)
		if err != nil {
			return err
		}
		fmt.Printf("Registered %s <%s> (%s)\n", u.Name, u.Email, u.ID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		if _, ok := s.Auth.Current(); !ok {
			fmt.Println("Not signed in.")
			return nil
		}
		if err := s.Auth.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()

		u, ok := s.Auth.Current()
		if !ok {
			fmt.Println("Not signed in.")
			return nil
		}
		fmt.Printf("%s <%s> (%s)\n", u.Name, u.Email, u.ID)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&authPassword, "password", "p", "", "Password (prompted when omitted)")
	registerCmd.Flags().StringVarP(&authPassword, "password", "p", "", "Password (prompted when omitted)")
	registerCmd.Flags().StringVarP(&authName, "name", "n", "", "Display name (prompted when omitted)")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := openSessionWith(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, s, port, logger)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// --- helpers ---

// openSession opens a session for a one-shot command. The load and search
// delays only pace the web UI, so they are dropped here.
func openSession(ctx context.Context) (*app.Session, error) {
	return openSessionWith(ctx, oneShotConfig(cfg))
}

func openSessionWith(ctx context.Context, c *config.Config) (*app.Session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return app.Open(ctx, c, logger)
}

// oneShotConfig returns a copy of c without the store delays.
func oneShotConfig(c *config.Config) *config.Config {
	cp := *c
	cp.Store.LoadDelay = 0
	cp.Store.SearchDelay = 0
	return &cp
}

// findArticle resolves a full id, or a unique id prefix of at least four
// characters among the loaded and bookmarked articles.
func findArticle(store *news.Store, id string) (news.Article, bool) {
	if a, ok := store.GetByID(id); ok {
		return a, true
	}
	if len(id) < 4 {
		return news.Article{}, false
	}
	var match news.Article
	seen := map[string]bool{}
	for _, a := range append(store.GetByCategory(""), store.Bookmarks()...) {
		if !strings.HasPrefix(a.ID, id) || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		match = a
	}
	if len(seen) != 1 {
		return news.Article{}, false
	}
	return match, true
}

func printArticles(store *news.Store, articles []news.Article, empty string) {
	if len(articles) == 0 {
		fmt.Println(empty)
		return
	}
	for _, a := range articles {
		mark := " "
		if store.IsBookmarked(a.ID) {
			mark = "*"
		}
		fmt.Printf("  %s %s  [%s] %s\n", mark, a.ID[:min(8, len(a.ID))], a.Category, a.Title)
		meta := a.Author
		if a.PublishedAt != "" {
			meta += " · " + a.PublishedAt
		}
		fmt.Printf("             %s\n", meta)
	}
}

func printPrefs(p preferences.Preferences) {
	fmt.Printf("Categories: %s\n", formatCategories(p.Categories))
	fmt.Printf("Personalization: %s\n", onOff(p.AIPersonalization))
	fmt.Printf("Breaking news: %s\n", onOff(p.BreakingNews))
}

func formatCategories(ids []string) string {
	if len(ids) == 0 {
		return "(all)"
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = news.CategoryName(id)
	}
	return strings.Join(names, ", ")
}

func categoryIDs() string {
	cats := news.Categories()
	ids := make([]string, len(cats))
	for i, c := range cats {
		ids[i] = c.ID
	}
	return strings.Join(ids, ", ")
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func confirm(question string) bool {
	if clearYes {
		return true
	}
	answer := prompt(question)
	return strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes")
}

func prompt(question string) string {
	fmt.Print(question)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
