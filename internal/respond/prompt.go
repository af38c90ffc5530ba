package respond

import (
	"github.com/charmbracelet/huh"

	"github.com/yaontheroad/email-agents/internal/ai"
	"github.com/yaontheroad/email-agents/internal/model"
)

// HuhPrompter asks questions with huh forms on the terminal.
type HuhPrompter struct {
	Accessible bool
}

// ConfirmAnyway implements Prompter.
func (p HuhPrompter) ConfirmAnyway(_ model.TriageRecord) (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("This email has already been responded to. Process anyway?").
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithAccessible(p.Accessible).Run()
	return ok, err
}

// ChooseAction implements Prompter.
func (p HuhPrompter) ChooseAction(_ model.TriageRecord, _ ai.Draft) (Action, error) {
	action := ActionSend
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[Action]().
				Title("Send this response?").
				Options(
					huh.NewOption("Send", ActionSend),
					huh.NewOption("No - don't reply", ActionNo),
					huh.NewOption("Edit - rewrite with instructions", ActionEdit),
					huh.NewOption("Skip", ActionSkip),
				).
				Value(&action),
		),
	).WithAccessible(p.Accessible).Run()
	return action, err
}

// EditInstructions implements Prompter.
func (p HuhPrompter) EditInstructions() (string, error) {
	var instructions string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("Describe how you want the email rewritten").
				Placeholder("Shorter, and propose Thursday instead").
				Value(&instructions),
		),
	).WithAccessible(p.Accessible).Run()
	return instructions, err
}
