package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/parley/pkg/client"
	"github.com/go-go-golems/parley/pkg/notify"
	"github.com/go-go-golems/parley/pkg/transport"
)

const eventsTopic = "chat.events"

var (
	flagServer     string
	flagConfig     string
	flagLogLevel   string
	flagRedis      string
	flagTokenCache string
)

var rootCmd = &cobra.Command{
	Use:   "parley",
	Short: "parley is a terminal client for the long-poll chat protocol",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		level, err := zerolog.ParseLevel(flagLogLevel)
		cobra.CheckErr(err)
		zerolog.SetGlobalLevel(level)
	},
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&flagServer, "server", "", "chat endpoint prefix, e.g. http://localhost:8000/chat")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "yaml config file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "zerolog level")
	rootCmd.Flags().StringVar(&flagRedis, "redis", "", "mirror state events to redis streams at this address")
	rootCmd.Flags().StringVar(&flagTokenCache, "token-cache", "", "file to persist the session token in")
}

func run(cmd *cobra.Command, args []string) error {
	cfg := client.DefaultConfig()
	if flagConfig != "" {
		var err error
		cfg, err = client.LoadConfig(flagConfig)
		if err != nil {
			return err
		}
	}
	if flagServer != "" {
		cfg.ServerURL = flagServer
	}

	stream := notify.StreamSettings{}
	if flagRedis != "" {
		stream = notify.StreamSettings{
			Enabled:  true,
			Addr:     flagRedis,
			Group:    "parley",
			Consumer: uuid.NewString(),
		}
	}
	pub, sub, err := notify.BuildPubSub(stream, log.Logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	frames, err := sub.Subscribe(ctx, eventsTopic)
	if err != nil {
		return err
	}
	go func() {
		for msg := range frames {
			printFrame(msg.Payload)
			msg.Ack()
		}
	}()

	opts := []client.ClientOption{
		client.WithSink(notify.NewWatermillSink(pub, eventsTopic, log.Logger)),
	}
	if flagTokenCache != "" {
		opts = append(opts, client.WithTokenCache(&client.FileTokenCache{Path: flagTokenCache}))
	}

	c, err := client.New(cfg, transport.NewClient(cfg.ServerURL), opts...)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Close()

	me := c.Identity()
	fmt.Printf("joined as %s\n", me.Name)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			if active := c.ActiveConversation(); active != "" {
				if err := c.SendMessage(active, line, nil); err != nil {
					fmt.Println("!", err)
				}
			} else {
				fmt.Println("! no active conversation; /join a room first")
			}
			continue
		}
		if quit := dispatchCommand(c, line); quit {
			break
		}
	}
	return scanner.Err()
}

func dispatchCommand(c *client.Client, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit":
		return true
	case "/rooms":
		for _, r := range c.Rooms() {
			fmt.Printf("  %s (%s)\n", r.Name, r.Kind)
		}
	case "/tabs":
		active := c.ActiveConversation()
		for _, name := range c.Conversations() {
			marker := " "
			if name == active {
				marker = "*"
			}
			fmt.Printf("  %s %s\n", marker, name)
		}
	case "/join":
		c.JoinRoom(arg)
	case "/create":
		c.CreateRoom(arg)
	case "/close", "/leave":
		if arg == "" {
			arg = c.ActiveConversation()
		}
		c.CloseConversation(arg)
	case "/msg":
		target, text, ok := strings.Cut(arg, " ")
		if !ok || strings.TrimSpace(text) == "" {
			fmt.Println("! usage: /msg <conversation> <text>")
			break
		}
		if err := c.SendMessage(target, strings.TrimSpace(text), nil); err != nil {
			fmt.Println("!", err)
		}
	case "/switch":
		c.Activate(arg)
	case "/pm":
		if err := c.RequestPrivate(arg); err != nil {
			fmt.Println("!", err)
		}
	case "/mute":
		if err := c.Mute(arg); err != nil {
			fmt.Println("!", err)
		}
	case "/unmute":
		if err := c.Unmute(arg); err != nil {
			fmt.Println("!", err)
		}
	case "/who":
		name := arg
		if name == "" {
			name = c.ActiveConversation()
		}
		if roster, ok := c.Roster(name); ok {
			for _, m := range roster {
				muted := ""
				if m.Muted {
					muted = " (muted)"
				}
				fmt.Printf("  %s%s\n", m.Name, muted)
			}
		}
	default:
		fmt.Println("! unknown command", cmd)
	}
	return false
}

// printFrame renders one notify event frame from the bus.
func printFrame(payload []byte) {
	var frame struct {
		Kind  string          `json:"kind"`
		Event json.RawMessage `json:"event"`
	}
	if err := json.Unmarshal(payload, &frame); err != nil {
		log.Debug().Err(err).Msg("bad event frame")
		return
	}
	switch frame.Kind {
	case "message.appended":
		var ev notify.MessageAppended
		if json.Unmarshal(frame.Event, &ev) == nil {
			who := ev.Entry.From
			if ev.Entry.Self {
				who = "me"
			}
			fmt.Printf("[%s] %s: %s\n", ev.Conversation, who, ev.Entry.Body)
			for _, a := range ev.Entry.Attachments {
				fmt.Printf("[%s]   attachment: %s\n", ev.Conversation, a.OriginalURL)
			}
		}
	case "notice.appended":
		var ev notify.NoticeAppended
		if json.Unmarshal(frame.Event, &ev) == nil {
			where := ev.Conversation
			if where == "" {
				where = "*"
			}
			fmt.Printf("[%s] -- %s\n", where, ev.Text)
		}
	case "connection.state":
		var ev notify.ConnectionStateChanged
		if json.Unmarshal(frame.Event, &ev) == nil {
			if ev.Terminal {
				fmt.Println("-- connection lost for good; restart to rejoin")
			} else {
				fmt.Printf("-- connection: %s\n", ev.State)
			}
		}
	case "conversation.opened":
		var ev notify.ConversationOpened
		if json.Unmarshal(frame.Event, &ev) == nil {
			fmt.Printf("-- opened %s (%s)\n", ev.Name, ev.Kind)
		}
	default:
		log.Debug().Str("kind", frame.Kind).RawJSON("event", frame.Event).Msg("event")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
