package main

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/zulandar/crewradar/internal/assign"
	"github.com/zulandar/crewradar/internal/config"
	"github.com/zulandar/crewradar/internal/db"
	"github.com/zulandar/crewradar/internal/directory"
	"github.com/zulandar/crewradar/internal/heartbeat"
	"github.com/zulandar/crewradar/internal/jira"
	"github.com/zulandar/crewradar/internal/kv"
	"github.com/zulandar/crewradar/internal/notify"
	"github.com/zulandar/crewradar/internal/notify/discord"
	"github.com/zulandar/crewradar/internal/notify/slack"
	"github.com/zulandar/crewradar/internal/presence"
	"github.com/zulandar/crewradar/internal/roster"
	"github.com/zulandar/crewradar/internal/roundrobin"
	"github.com/zulandar/crewradar/internal/rules"
	"github.com/zulandar/crewradar/internal/server"
	"github.com/zulandar/crewradar/internal/workload"
)

// app holds every wired service.
type app struct {
	cfg       *config.Config
	db        *gorm.DB
	jira      *jira.Client
	directory *directory.Client
	presence  *presence.Store
	rules     *rules.Store
	engine    *assign.Engine
	heartbeat *heartbeat.Service
	roster    *roster.Service
}

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}
	return cfg, gormDB, nil
}

// buildApp loads configPath and wires the services it describes.
func buildApp(configPath string) (*app, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	store := kv.NewGormStore(gormDB)

	jc, err := jira.New(jira.Opts{
		BaseURL:  cfg.Jira.BaseURL,
		Email:    cfg.Jira.Email,
		APIToken: cfg.Jira.APIToken,
	})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		db:       gormDB,
		jira:     jc,
		presence: presence.NewStore(store, nil),
		rules:    rules.NewStore(store),
	}

	var dir heartbeat.Directory
	if cfg.Presence.Enabled {
		dc, err := directory.New(directory.Opts{
			ClientID:     cfg.Presence.ClientID,
			ClientSecret: cfg.Presence.ClientSecret,
			TokenURL:     cfg.Presence.TokenURL,
			GraphURL:     cfg.Presence.GraphURL,
		})
		if err != nil {
			return nil, err
		}
		a.directory = dc
		dir = directory.NewCached(dc, store)
	}
	a.heartbeat = heartbeat.NewService(a.presence, jc, dir)

	a.roster = roster.New(roster.Opts{
		Presence:         a.presence,
		Groups:           jc,
		AgentGroupPrefix: cfg.Jira.AgentGroupPrefix,
		OnlineWindow:     cfg.Heartbeat.OnlineWindow,
	})

	notifier, err := buildNotifier(cfg.Notify)
	if err != nil {
		return nil, err
	}

	selector := roundrobin.NewSelector(store)
	a.engine, err = assign.NewEngine(assign.EngineOpts{
		Ticketing: jc,
		Rules:     a.rules,
		Presence:  a.presence,
		Selector:  selector,
		Pipeline: assign.NewPipeline(assign.PipelineOpts{
			Presence:     a.presence,
			Workload:     workload.NewCounter(jc),
			OnlineWindow: cfg.Heartbeat.OnlineWindow,
		}),
		DB:               gormDB,
		Notifier:         notifier,
		Users:            jc,
		RequestTypeField: cfg.Jira.RequestTypeField,
		AgentGroupPrefix: cfg.Jira.AgentGroupPrefix,
		BrowseURL:        cfg.Jira.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// buildNotifier returns nil when no chat destination is configured.
func buildNotifier(cfg config.NotifyConfig) (notify.Notifier, error) {
	var multi notify.Multi
	if cfg.Slack.Enabled() {
		n, err := slack.New(slack.Opts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		multi = append(multi, n)
		log.Printf("crew: slack notices enabled for channel %s", cfg.Slack.ChannelID)
	}
	if cfg.Discord.Enabled() {
		n, err := discord.New(discord.Opts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		multi = append(multi, n)
		log.Printf("crew: discord notices enabled for channel %s", cfg.Discord.ChannelID)
	}
	if len(multi) == 0 {
		return nil, nil
	}
	return multi, nil
}

func (a *app) serverDeps() server.Deps {
	d := server.Deps{
		Engine:       a.engine,
		Heartbeat:    a.heartbeat,
		Roster:       a.roster,
		Presence:     a.presence,
		Rules:        a.rules,
		RequestTypes: a.jira,
	}
	if a.directory != nil {
		d.Directory = a.directory
	}
	return d
}
