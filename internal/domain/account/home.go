package account

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/radconsole/internal/domain/notification"
	"github.com/ehr/radconsole/internal/platform/auth"
	"github.com/ehr/radconsole/internal/platform/gateway"
	"github.com/ehr/radconsole/internal/platform/session"
)

const unreadLimit = 5

var relTimes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "ahora", DivBy: time.Second},
	{D: 2 * time.Minute, Format: "%s 1 minuto", DivBy: 1},
	{D: time.Hour, Format: "%s %d minutos", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "%s 1 hora", DivBy: 1},
	{D: humanize.Day, Format: "%s %d horas", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "%s 1 día", DivBy: 1},
	{D: humanize.Month, Format: "%s %d días", DivBy: humanize.Day},
	{D: humanize.LongTime, Format: "%s meses", DivBy: 1},
}

func ago(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.CustomRelTime(t, now, "hace", "dentro de", relTimes)
}

// Card is one home page counter. Count is optional; cards without one show
// no number.
type Card struct {
	Label string
	Link  string
	Roles []session.Role
	Count func(ctx context.Context) (int, error)
}

// UnreadSource feeds the home page's notification list.
type UnreadSource interface {
	Unread(ctx context.Context, patientID string, limit int) ([]notification.Notification, int, error)
}

// Home builds the landing page.
type Home struct {
	cards  []Card
	unread UnreadSource
	now    func() time.Time
	logger zerolog.Logger
}

func NewHome(cards []Card, unread UnreadSource, logger zerolog.Logger) *Home {
	return &Home{cards: cards, unread: unread, now: time.Now, logger: logger}
}

// CardView is a card as drawn.
type CardView struct {
	Label string
	Link  string
	Value string
}

// UnreadItem is one line of the unread feed.
type UnreadItem struct {
	Title   string
	Message string
	When    string
}

// HomeView is the home page model.
type HomeView struct {
	Cards  []CardView
	Unread []UnreadItem
}

// Build evaluates the cards sess may see and the newest unread
// notifications. A failing counter shows a dash rather than failing the
// page; an expired backend session is returned.
func (h *Home) Build(ctx context.Context, sess *session.Session) (HomeView, error) {
	var v HomeView
	for _, card := range h.cards {
		if len(card.Roles) > 0 && !sess.HasRole(card.Roles...) {
			continue
		}
		cv := CardView{Label: card.Label, Link: card.Link}
		if card.Count != nil {
			n, err := card.Count(ctx)
			switch {
			case err == nil:
				cv.Value = strconv.Itoa(n)
			case isUnauthorized(err):
				return v, err
			default:
				h.logger.Warn().Err(err).Str("card", card.Label).Msg("home counter")
				cv.Value = "-"
			}
		}
		v.Cards = append(v.Cards, cv)
	}

	scope, ok := notification.ScopeFor(sess)
	if h.unread == nil || !ok {
		return v, nil
	}
	items, total, err := h.unread.Unread(ctx, scope, unreadLimit)
	if err != nil {
		if isUnauthorized(err) {
			return v, err
		}
		h.logger.Warn().Err(err).Msg("home unread notifications")
		return v, nil
	}
	now := h.now()
	for _, n := range items {
		title := n.Title
		if title == "" {
			title = n.Type
		}
		v.Unread = append(v.Unread, UnreadItem{Title: title, Message: n.Message, When: ago(n.Date.Time, now)})
	}
	for i := range v.Cards {
		if v.Cards[i].Link == "/notificaciones" && v.Cards[i].Value == "" {
			v.Cards[i].Value = strconv.Itoa(total)
		}
	}
	return v, nil
}

func (h *Handler) Home(c echo.Context) error {
	sess := auth.SessionFrom(c)
	v, err := h.home.Build(c.Request().Context(), sess)
	if err != nil {
		return err
	}
	return h.shell.Render(c, http.StatusOK, "home", "Inicio", v)
}

func isUnauthorized(err error) bool {
	return errors.Is(err, gateway.ErrUnauthorized)
}
