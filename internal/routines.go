package internal

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/makc56com-code/tg-wa-bridge-sub000/pkg/log"
)

func Routines(c *cron.Cron, a *App) {
	log.Print(nil).Info("Running Routine Tasks")

	if _, err := c.AddFunc(a.Config.HealthCheckCron, func() {
		if !a.Bridge.Manager.HealthCheck() {
			log.Print(nil).WithField("status", a.Bridge.Manager.Status()).Debug("WhatsApp session not connected")
		}
	}); err != nil {
		log.Print(nil).WithField("error", err.Error()).Error("Failed to add health check cron job")
	}

	if _, err := c.AddFunc(a.Config.MirrorCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		a.Mirror.SaveNow(ctx)
	}); err != nil {
		log.Print(nil).WithField("error", err.Error()).Error("Failed to add credential mirror cron job")
	}

	if a.Config.VersionRefreshEnabled && a.Bridge.Versions != nil {
		spec, force := a.Config.VersionRefreshCron, a.Config.VersionRefreshForce
		_, err := c.AddFunc(spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			refreshed, err := a.Bridge.Versions.Refresh(ctx, force)
			version := a.Bridge.Versions.Status().CurrentVersion
			if err != nil {
				log.Print(nil).WithField("version", version).WithField("force", force).Error("WA Web version refresh failed: " + err.Error())
				return
			}
			log.Print(nil).WithField("version", version).WithField("refreshed", refreshed).Info("WA Web version refresh completed")
		})
		if err != nil {
			log.Print(nil).WithField("error", err.Error()).Error("Failed to add WA Web version refresh cron job")
		} else {
			log.Print(nil).WithField("spec", spec).WithField("force", force).Info("WA Web version refresh cron enabled")
		}
	}

	c.Start()
}
