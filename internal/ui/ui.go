package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/bz888/sagan/internal/api"
	"github.com/bz888/sagan/internal/chat"
	"github.com/bz888/sagan/internal/logger"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

type Options struct {
	Client *api.Client
	// Model is selected in every new thread.
	Model string
	// Dev shows the debug console from the start.
	Dev bool
}

// Shell is the terminal chat client.
type Shell struct {
	app          *tview.Application
	pages        *tview.Pages
	mainFlex     *tview.Flex
	textView     *tview.TextView
	textArea     *tview.TextArea
	statusLine   *tview.TextView
	debugConsole *tview.TextView
	debugShown   bool

	client       *api.Client
	defaultModel string

	// owned by the event loop
	ctx        context.Context
	session    *chat.Session
	notes      []notice
	cancelTurn context.CancelFunc

	localLogger *logger.Logger
}

func New(opts Options) *Shell {
	s := &Shell{
		app:          tview.NewApplication(),
		client:       opts.Client,
		defaultModel: opts.Model,
		ctx:          context.Background(),
		session:      chat.NewSession(opts.Model),
		localLogger:  logger.NewLogger("views"),
	}
	s.app.EnablePaste(true)
	s.app.EnableMouse(true)

	s.debugConsole = s.initDebugConsole()
	s.textView = s.initChatViewer()
	s.textArea = s.initChatInput()
	s.statusLine = tview.NewTextView().SetDynamicColors(true)

	subFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(s.textView, 0, 1, false).
		AddItem(s.textArea, 8, 2, true).
		AddItem(s.statusLine, 1, 0, false)
	s.mainFlex = tview.NewFlex().
		AddItem(subFlex, 0, 2, true)
	if opts.Dev {
		s.mainFlex.AddItem(s.debugConsole, 0, 1, false)
		s.debugShown = true
	}

	s.pages = tview.NewPages().AddPage("main", s.mainFlex, true, true)
	s.setInputCapture()
	s.refresh()
	return s
}

func (s *Shell) initChatViewer() *tview.TextView {
	textView := tview.NewTextView().
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true)

	textView.SetTitle("Conversation").SetBorder(true)
	textView.SetScrollable(true)
	textView.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEnter {
			s.app.SetFocus(s.textArea)
		}
		return event
	})
	return textView
}

func (s *Shell) initChatInput() *tview.TextArea {
	textArea := tview.NewTextArea()
	textArea.SetTitle("Question").SetBorder(true)
	textArea.SetPlaceholder("Ask anything, /help for commands")
	return textArea
}

func (s *Shell) initDebugConsole() *tview.TextView {
	console := tview.NewTextView().
		SetChangedFunc(func() {
			s.app.Draw()
		}).
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true)

	console.SetTitle("Debugger").SetBorder(true)
	console.ScrollToEnd()
	return console
}

// DebugConsole is the view the logger writes to.
func (s *Shell) DebugConsole() *tview.TextView {
	return s.debugConsole
}

// Run shows the shell until the user quits or ctx is cancelled.
func (s *Shell) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.ctx = ctx

	if ctx.Err() != nil {
		return nil
	}
	go func() {
		<-ctx.Done()
		s.app.Stop()
	}()

	if s.client != nil {
		go func() {
			if err := s.client.Status(ctx); err != nil {
				s.localLogger.Warn("Proxy is not answering:", err)
			}
		}()
	}

	err := s.app.SetRoot(s.pages, true).SetFocus(s.textArea).Run()
	if s.cancelTurn != nil {
		s.cancelTurn()
	}
	return err
}

func (s *Shell) setInputCapture() {
	s.textArea.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyESC:
			if s.textView.GetText(false) != "" {
				s.app.SetFocus(s.textView)
			}
		case tcell.KeyCtrlN:
			s.newThread()
			s.refresh()
			return nil
		case tcell.KeyEnter:
			if event.Modifiers()&tcell.ModAlt != 0 {
				// alt+enter keeps typing on a new line
				return event
			}
			content := s.textArea.GetText()
			if strings.TrimSpace(content) == "" {
				return nil
			}
			// commands work mid-turn, the draft waits for the answer
			if cmd, ok := parseCommand(content); ok {
				s.textArea.SetText("", true)
				s.runCommand(cmd)
				return nil
			}
			if !s.session.CanSubmit() {
				return nil
			}
			s.textArea.SetText("", true)
			s.submit(content)
			return nil
		}
		return event
	})
}

func (s *Shell) runCommand(cmd command) {
	s.localLogger.Info("Command:", cmd.name, cmd.arg)

	switch cmd.name {
	case cmdHelp:
		s.note(helpText())
	case cmdModels:
		s.createModelModal()
	case cmdModel:
		s.selectModel(cmd.arg)
	case cmdResearch:
		on := !s.session.DeepResearch()
		s.session.SetDeepResearch(on)
		s.note("Deep research " + onOff(on))
	case cmdBrowse:
		on := !s.session.Browsing()
		s.session.SetBrowsing(on)
		s.note("Browsing " + onOff(on))
	case cmdNew:
		s.newThread()
	case cmdDebug:
		s.toggleDebugConsole()
	case cmdBye:
		s.quitApp()
		return
	}
	s.refresh()
}

// submit sends the draft and streams the answer into the conversation.
func (s *Shell) submit(content string) {
	session := s.session
	req, err := session.Submit(content)
	if err != nil {
		s.localLogger.Warn("Submit rejected:", err)
		return
	}
	s.localLogger.Info("Input request:", content)
	s.localLogger.Info("Input model:", req.Model)

	turnCtx, cancel := context.WithCancel(s.ctx)
	s.cancelTurn = cancel
	s.refresh()

	go func() {
		defer cancel()
		err := s.client.Stream(turnCtx, req, func(chunk string) {
			session.AppendChunk(chunk)
			s.app.QueueUpdateDraw(func() {
				if session == s.session {
					s.refresh()
				}
			})
		})
		if err != nil {
			s.localLogger.Error("Chat failed:", err)
		}
		session.Finish(err)
		if turnCtx.Err() != nil {
			// dropped by a new thread or shutdown
			return
		}

		s.app.QueueUpdateDraw(func() {
			if session != s.session {
				return
			}
			s.refresh()
		})
	}()
}

func (s *Shell) selectModel(id string) {
	if !validModel(id) {
		s.localLogger.Warn("Unknown model:", id)
		s.note(fmt.Sprintf("Unknown model %q, try /models", id))
		return
	}
	if id == s.session.Model() {
		s.note("Already using model: " + id)
		return
	}
	s.session.SetModel(id)
	s.localLogger.Info("Selected:", id)
	s.note("Using model: " + id)
}

// newThread drops the conversation and restores the defaults.
func (s *Shell) newThread() {
	if s.cancelTurn != nil {
		s.cancelTurn()
		s.cancelTurn = nil
	}
	s.session = chat.NewSession(s.defaultModel)
	s.notes = nil
	s.localLogger.Info("New thread", s.session.ID())
}

func createModal(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}

func (s *Shell) createModelModal() {
	closeModal := func() {
		s.pages.RemovePage("modelModal")
		s.app.SetFocus(s.textArea)
		s.refresh()
	}

	list := tview.NewList()
	list.SetBorder(true).SetTitle("Models")
	current := s.session.Model()
	for i, model := range chat.Models {
		secondary := model.ID
		if model.ID == current {
			secondary += " (current)"
		}
		list.AddItem(model.Label, secondary, '1'+rune(i), func() {
			s.selectModel(model.ID)
			closeModal()
		})
		if model.ID == current {
			list.SetCurrentItem(i)
		}
	}
	list.AddItem("Back", "", 'q', closeModal)
	list.SetDoneFunc(closeModal)

	s.pages.AddPage("modelModal", createModal(list, 44, 2*len(chat.Models)+4), true, true)
	s.app.SetFocus(list)
}

func (s *Shell) toggleDebugConsole() {
	if s.debugShown {
		s.mainFlex.RemoveItem(s.debugConsole)
		s.note("Debug console disabled")
	} else {
		s.mainFlex.AddItem(s.debugConsole, 0, 1, false)
		s.note("Debug console enabled")
	}
	s.debugShown = !s.debugShown
}

func (s *Shell) quitApp() {
	s.localLogger.Info("Exiting by command.")
	if s.cancelTurn != nil {
		s.cancelTurn()
	}
	s.app.Stop()
}

func (s *Shell) note(text string) {
	s.notes = append(s.notes, notice{at: len(s.session.Messages()), text: text})
}

// refresh redraws the conversation and the status line from the session.
func (s *Shell) refresh() {
	s.textView.SetText(renderTranscript(s.session.Messages(), s.notes))
	s.textView.ScrollToEnd()
	s.statusLine.SetText(statusText(
		s.session.Model(),
		s.session.DeepResearch(),
		s.session.Browsing(),
		s.session.Status(),
		s.session.LastError(),
	))
}
