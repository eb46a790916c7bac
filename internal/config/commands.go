package config

import (
	"fmt"

	"github.com/roach88/launchpad/internal/canon"
	"github.com/roach88/launchpad/internal/engine"
)

// Commands returns the setup sequence for s: create, initialize, the
// optional whitelist, vesting and LP setup, approval and finalization.
// Every command is issued by admin, who must hold all three platform
// roles. Funding is left to the owner.
func (s Setup) Commands(admin string) ([]engine.Command, error) {
	if s.ID == "" {
		return nil, ValidationError{Field: "id", Code: ErrCodeSchema, Message: "campaign id is required to issue setup commands"}
	}

	type step struct {
		action string
		args   any
	}
	steps := []step{
		{engine.ActionCreate, map[string]any{"id": s.ID, "owner": s.Owner}},
		{engine.ActionInitialize, s.Config},
	}
	if s.Whitelist != nil {
		steps = append(steps, step{engine.ActionSetupWhitelist, *s.Whitelist})
	}
	steps = append(steps, step{engine.ActionSetupVesting, map[string]any{
		"buyer":            s.BuyerVesting,
		"owner":            s.OwnerVesting,
		"owner_allocation": s.OwnerAllocation,
	}})
	if s.Lp != nil {
		steps = append(steps, step{engine.ActionSetupLp, *s.Lp})
	}
	steps = append(steps,
		step{engine.ActionApproveConfig, nil},
		step{engine.ActionFinalize, nil},
	)

	cmds := make([]engine.Command, 0, len(steps))
	for _, st := range steps {
		var args map[string]any
		if st.args != nil {
			obj, err := canon.NormalizeObject(st.args)
			if err != nil {
				return nil, fmt.Errorf("%s args: %w", st.action, err)
			}
			args = obj
		}
		cmd := engine.Command{Action: st.action, Caller: admin, Args: args}
		if st.action != engine.ActionCreate {
			cmd.Campaign = s.ID
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}
