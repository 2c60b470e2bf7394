package roster

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/fieldofplay/go/internal/models"
	"github.com/rs/zerolog/log"
)

var ErrInvalidGroup = errors.New("invalid group")

// App validates groups before they reach the store.
type App struct {
	store Store
}

// NewApp creates a roster App
func NewApp(store Store) *App {
	return &App{store: store}
}

// ImportGroup checks a group and saves it, assigning missing ids.
func (a *App) ImportGroup(ctx context.Context, g *models.Group) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	for _, athlete := range g.Athletes {
		if athlete.ID == uuid.Nil {
			athlete.ID = uuid.New()
		}
		athlete.GroupID = g.ID
	}
	if err := a.validateGroup(g); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if err := a.store.SaveGroup(ctx, g); err != nil {
		return err
	}
	log.Info().
		Str("group_id", g.ID.String()).
		Str("group", g.Name).
		Str("platform", g.Platform).
		Int("athletes", len(g.Athletes)).
		Msg("group imported")
	return nil
}

// Groups lists the stored groups.
func (a *App) Groups(ctx context.Context) ([]*models.Group, error) {
	return a.store.ListGroups(ctx)
}

// FindGroup returns the group named name on platform.
func (a *App) FindGroup(ctx context.Context, platform, name string) (*models.Group, error) {
	groups, err := a.store.ListGroups(ctx)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.Platform == platform && g.Name == name {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: %s on platform %s", ErrGroupNotFound, name, platform)
}

func (a *App) validateGroup(g *models.Group) error {
	if g.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidGroup)
	}
	if g.Platform == "" {
		return fmt.Errorf("%w: platform is required", ErrInvalidGroup)
	}
	lots := make(map[int]bool, len(g.Athletes))
	for _, athlete := range g.Athletes {
		if athlete.LastName == "" {
			return fmt.Errorf("%w: athlete %s has no last name", ErrInvalidGroup, athlete.ID)
		}
		if athlete.LotNumber <= 0 {
			return fmt.Errorf("%w: %s has no lot number", ErrInvalidGroup, athlete.FullName())
		}
		if lots[athlete.LotNumber] {
			return fmt.Errorf("%w: lot number %d is used twice", ErrInvalidGroup, athlete.LotNumber)
		}
		lots[athlete.LotNumber] = true
		if athlete.Attempts[0].Declaration < 0 || athlete.EntryTotal < 0 {
			return fmt.Errorf("%w: %s has a negative weight", ErrInvalidGroup, athlete.FullName())
		}
	}
	return nil
}
