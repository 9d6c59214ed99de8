package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"github.com/raphaelgruber/jarvis/internal/agent"
	"github.com/raphaelgruber/jarvis/internal/client"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// sendTimeout bounds one exchange; LLM answers can be slow.
const sendTimeout = 2 * time.Minute

// maxTranscript is the number of rendered exchanges kept on screen.
const maxTranscript = 30

var (
	chatSession string
	chatSource  string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Open a websocket conversation with the assistant. Every line you type
is processed in the same session, so follow-ups like "oui" or "annule"
apply to the previous exchange.

When stdin is not a terminal, lines are read from stdin and answers are
printed one after another.

Examples:
  jarvis chat
  jarvis chat --session 3f2a6c1e-... --source voice
  printf 'bonjour\nmerci\n' | jarvis chat`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "session ID to continue (default: new session)")
	chatCmd.Flags().StringVar(&chatSource, "source", string(agent.SourceUI), "request source (voice, ui, api)")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	conv, err := apiClient.Chat(ctx, chatSession, chatSource)
	if err != nil {
		return fmt.Errorf("open conversation: %w", err)
	}
	defer conv.Close()

	if f, ok := cmd.InOrStdin().(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		return runLineChat(ctx, conv, cmd.InOrStdin(), cmd.OutOrStdout())
	}
	return runChatUI(conv)
}

// runLineChat answers each non-empty input line in order.
func runLineChat(ctx context.Context, conv *client.Conversation, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		resp, err := conv.Send(sendCtx, text)
		cancel()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "> %s\n", text)
		printResponse(out, resp)
		fmt.Fprintln(out)
	}
	return scanner.Err()
}

// answerMsg carries the agent's answer to one utterance.
type answerMsg struct {
	text string
	resp *agent.ProcessResponse
	err  error
}

// chatModel is the bubbletea model for an interactive conversation.
type chatModel struct {
	conv       *client.Conversation
	input      textinput.Model
	confidence progress.Model
	theme      Theme
	transcript []string
	waiting    bool
	quitting   bool
}

// newChatModel creates a new chat model.
func newChatModel(conv *client.Conversation) chatModel {
	input := textinput.New()
	input.Placeholder = "Parlez à Jarvis..."
	input.CharLimit = 2000
	input.Focus()

	return chatModel{
		conv:       conv,
		input:      input,
		confidence: newConfidenceBar(),
		theme:      defaultTheme,
	}
}

// Init returns the initial command.
func (m chatModel) Init() tea.Cmd {
	return m.confidence.Init()
}

// Update handles messages and returns the updated model.
func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.waiting {
				return m, nil
			}
			m.input.Reset()
			m.waiting = true
			return m, m.send(text)
		}

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.push(m.theme.userLine(msg.text) + "\n" + m.theme.errorStyle().Render("✗ "+msg.err.Error()) + "\n")
			return m, nil
		}
		m.push(m.theme.userLine(msg.text) + "\n" + m.theme.renderResponse(m.confidence, msg.resp))
		return m, nil

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.confidence, cmd = m.confidence.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *chatModel) push(entry string) {
	m.transcript = append(m.transcript, entry)
	if len(m.transcript) > maxTranscript {
		m.transcript = m.transcript[len(m.transcript)-maxTranscript:]
	}
}

// View renders the conversation.
func (m chatModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m chatModel) renderContent() string {
	if m.quitting {
		return m.theme.hintStyle().Render(fmt.Sprintf("\nSession %s\nUse 'jarvis chat --session %s' to continue.\n",
			m.conv.SessionID(), m.conv.SessionID()))
	}

	var b strings.Builder
	for _, entry := range m.transcript {
		b.WriteString(entry)
		b.WriteString("\n")
	}
	if m.waiting {
		b.WriteString(m.theme.statusStyle().Render("Jarvis réfléchit..."))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.theme.hintStyle().Render("Enter to send, Esc or Ctrl+C to quit"))
	b.WriteString("\n")
	return b.String()
}

// send processes text in a command so Update never blocks.
func (m chatModel) send(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		resp, err := m.conv.Send(ctx, text)
		return answerMsg{text: text, resp: resp, err: err}
	}
}

func (t Theme) userLine(text string) string {
	return t.hintStyle().Render("> ") + text
}

// runChatUI runs the interactive chat until the user quits.
func runChatUI(conv *client.Conversation) error {
	p := tea.NewProgram(newChatModel(conv))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI error: %w", err)
	}
	return nil
}
