package repo

import (
	"time"

	"gorm.io/gorm"

	"github.com/Skryldev/storefront/db"
)

const (
	hooksPluginName = "storefront:db_hooks"
	startedKey      = "storefront:started"
)

// dbHooks is a GORM plugin that reports every statement to the hooks of the
// db.DB the session was opened on, so the GORM backend is logged, traced and
// measured like the SQL one.
type dbHooks struct {
	d *db.DB
}

func (p *dbHooks) Name() string { return hooksPluginName }

func (p *dbHooks) Initialize(g *gorm.DB) error {
	cb := g.Callback()
	for _, reg := range []struct {
		before, after func(string, func(*gorm.DB)) error
	}{
		{cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{cb.Row().Before("gorm:row").Register, cb.Row().After("gorm:row").Register},
		{cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	} {
		if err := reg.before(hooksPluginName+":before", p.start); err != nil {
			return err
		}
		if err := reg.after(hooksPluginName+":after", p.finish); err != nil {
			return err
		}
	}
	return nil
}

func (p *dbHooks) start(g *gorm.DB) {
	g.InstanceSet(startedKey, time.Now())
}

func (p *dbHooks) finish(g *gorm.DB) {
	query := g.Statement.SQL.String()
	if query == "" {
		return
	}
	started := time.Now()
	if v, ok := g.InstanceGet(startedKey); ok {
		if t, ok := v.(time.Time); ok {
			started = t
		}
	}
	var err error
	if g.Error != nil {
		err = gormErr(g.Error)
	}
	p.d.Observe(g.Statement.Context, query, g.Statement.Vars, started, err)
}
