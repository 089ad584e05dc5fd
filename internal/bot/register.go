package bot

import (
	"errors"
	"fmt"

	tg "github.com/m3rciful/referralbot/core/telegram"
	"github.com/m3rciful/referralbot/core/telegram/commands"
	"github.com/m3rciful/referralbot/internal/users"

	tele "gopkg.in/telebot.v4"
)

// Register binds commands, callbacks and fallbacks to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	var errs []error
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: h.Start, Description: "Create your account and get your referral link"}},
		{"/menu", commands.Command{Handler: h.Menu, Description: "Manage your data"}},
		{"/my_referrals", commands.Command{Handler: h.run(h.flow.Referrals), Description: "List the users you invited", Aliases: []string{"/referrals"}}},
	}
	for _, c := range cmds {
		errs = append(errs, reg.RegisterCommand(c.name, c.cmd))
	}

	cbs := map[string]tele.HandlerFunc{
		CbAdd:         h.run(h.flow.Add),
		CbEdit:        h.run(h.flow.Edit),
		CbShow:        h.run(h.flow.Show),
		CbDelete:      h.run(h.flow.Delete),
		CbReferrals:   h.run(h.flow.Referrals),
		CbReferral:    h.Referral,
		CbJobTitle:    h.choice(users.JobTitle),
		CbJobPosition: h.choice(users.JobPosition),
	}
	for key, fn := range cbs {
		errs = append(errs, reg.RegisterCallback(key, fn))
	}

	reg.SetCommandNotFound(h.UnknownCommand)
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("bot: register: %w", err)
	}
	return nil
}
