package cli

import (
	"bufio"
	"context"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/storefront/internal/client/client"
	"github.com/dmitrijs2005/storefront/internal/client/config"
	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/client/services"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config      *config.Config
	authService services.AuthService
	reader      *bufio.Reader
	out         io.Writer

	mu   sync.Mutex
	user *models.User
	Mode Mode
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	db, err := client.InitDatabase(ctx, c.SessionDBPath)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	apiClient, err := client.NewAuthClient(c.ServerEndpointAddr)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	as := services.NewAuthService(apiClient, db)

	return &App{config: c, authService: as, reader: bufio.NewReader(os.Stdin), out: os.Stdout}, nil
}

func (a *App) setMode(mode Mode) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Mode != mode {
		a.Mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) setUser(u *models.User) {
	a.mu.Lock()
	a.user = u
	a.mu.Unlock()
}

func (a *App) isLoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user != nil
}

// getStatus renders the prompt prefix, e.g. "(a@x.com online)".
func (a *App) getStatus() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := ""
	if a.user != nil {
		s = a.user.Email + " "
	}
	s = strings.TrimSpace(s + string(a.Mode))
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}

// withTimeout bounds a single server round trip.
func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config == nil || a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

// Run resumes the saved session if there is one, then serves the REPL until
// the user exits or ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.authService.Close(ctx)

	log.Println("Welcome to storefront CLI (type 'help' for commands)")

	if err := a.Resume(ctx); err == nil {
		log.Printf("Resumed session for %s", a.user.Email)
	}

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.getStatus, a.reader)
}

// StartOnlineStatusWatcher pings the server every interval and flips Mode
// accordingly until ctx is done.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.authService.Ping(pingCtx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
