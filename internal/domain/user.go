package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrAlreadyWatched is returned when a stock is added to a watchlist twice.
	ErrAlreadyWatched = fmt.Errorf("stock already in watchlist")
	// ErrInvalidHolding is returned for a non-positive quantity or a negative price.
	ErrInvalidHolding = fmt.Errorf("invalid holding")
)

// User is the aggregate root owning a user's portfolio, watchlist and chat
// sessions. The children exist only through their User: saving the User
// persists every child in its collections and deletes any stored child that
// is no longer present; deleting the User deletes all of them.
type User struct {
	UserID          string        `json:"userId"`
	CreatedAt       time.Time     `json:"createdAt"`
	PortfolioList   []Portfolio   `json:"portfolioList"`
	WatchList       []Watchlist   `json:"watchList"`
	ChatSessionList []ChatSession `json:"chatSessionList"`
}

// Portfolio is a single holding of one stock.
type Portfolio struct {
	PortfolioID  string          `json:"portfolioId"`
	UserID       string          `json:"userId"`
	StockID      string          `json:"stockId"`
	Quantity     decimal.Decimal `json:"quantity"`
	AveragePrice decimal.Decimal `json:"averagePrice"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Watchlist is a stock the user follows.
type Watchlist struct {
	WatchlistID string    `json:"watchlistId"`
	UserID      string    `json:"userId"`
	StockID     string    `json:"stockId"`
	AddedAt     time.Time `json:"addedAt"`
}

// ChatSession is an advisory chat thread.
type ChatSession struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUser returns a User with the caller-assigned ID and empty collections.
// CreatedAt stays zero until the store inserts the user.
func NewUser(userID string) *User {
	return &User{
		UserID:          userID,
		PortfolioList:   []Portfolio{},
		WatchList:       []Watchlist{},
		ChatSessionList: []ChatSession{},
	}
}

// AddToWatchlist appends stockID to the watchlist.
func (u *User) AddToWatchlist(stockID string) (Watchlist, error) {
	for _, w := range u.WatchList {
		if w.StockID == stockID {
			return w, fmt.Errorf("%s: %w", stockID, ErrAlreadyWatched)
		}
	}

	w := Watchlist{
		WatchlistID: uuid.NewString(),
		UserID:      u.UserID,
		StockID:     stockID,
		AddedAt:     now(),
	}
	u.WatchList = append(u.WatchList, w)
	return w, nil
}

// RemoveFromWatchlist drops stockID from the watchlist. It reports whether an
// entry was removed.
func (u *User) RemoveFromWatchlist(stockID string) bool {
	for i, w := range u.WatchList {
		if w.StockID == stockID {
			u.WatchList = append(u.WatchList[:i], u.WatchList[i+1:]...)
			return true
		}
	}
	return false
}

// AddHolding records a purchase of quantity shares at price. Buying a stock
// already held merges into the existing holding at the weighted average price.
func (u *User) AddHolding(stockID string, quantity, price decimal.Decimal) (Portfolio, error) {
	if !quantity.IsPositive() || price.IsNegative() {
		return Portfolio{}, fmt.Errorf("quantity %s at %s: %w", quantity, price, ErrInvalidHolding)
	}

	for i, p := range u.PortfolioList {
		if p.StockID != stockID {
			continue
		}
		total := p.Quantity.Add(quantity)
		cost := p.Quantity.Mul(p.AveragePrice).Add(quantity.Mul(price))
		p.AveragePrice = cost.DivRound(total, 4)
		p.Quantity = total
		u.PortfolioList[i] = p
		return p, nil
	}

	p := Portfolio{
		PortfolioID:  uuid.NewString(),
		UserID:       u.UserID,
		StockID:      stockID,
		Quantity:     quantity,
		AveragePrice: price,
		CreatedAt:    now(),
	}
	u.PortfolioList = append(u.PortfolioList, p)
	return p, nil
}

// RemoveHolding drops the holding of stockID. It reports whether a holding
// was removed.
func (u *User) RemoveHolding(stockID string) bool {
	for i, p := range u.PortfolioList {
		if p.StockID == stockID {
			u.PortfolioList = append(u.PortfolioList[:i], u.PortfolioList[i+1:]...)
			return true
		}
	}
	return false
}

// OpenChatSession starts a new chat session.
func (u *User) OpenChatSession(title string) ChatSession {
	c := ChatSession{
		SessionID: uuid.NewString(),
		UserID:    u.UserID,
		Title:     title,
		CreatedAt: now(),
	}
	u.ChatSessionList = append(u.ChatSessionList, c)
	return c
}

// CloseChatSession drops the session. It reports whether a session was removed.
func (u *User) CloseChatSession(sessionID string) bool {
	for i, c := range u.ChatSessionList {
		if c.SessionID == sessionID {
			u.ChatSessionList = append(u.ChatSessionList[:i], u.ChatSessionList[i+1:]...)
			return true
		}
	}
	return false
}

// now is truncated to the millisecond precision timestamps are stored with.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// UserSummary is a user without its collections, carrying their sizes.
type UserSummary struct {
	UserID       string    `json:"userId"`
	CreatedAt    time.Time `json:"createdAt"`
	Holdings     int       `json:"holdings"`
	Watched      int       `json:"watched"`
	ChatSessions int       `json:"chatSessions"`
}
