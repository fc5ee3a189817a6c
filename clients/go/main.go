// NexusNU CLI - Command line client for the NexusNU API
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Addy-9595/northeasternconnect-backend/clients/go/nexus"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	client := nexus.NewClient(os.Getenv("NEXUS_URL"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "health":
		resp, err := client.Health(ctx)
		if resp != nil {
			printJSON(resp)
		}
		exitOnError(err)

	case "register":
		need(args, 3, "register <name> <email> <password> [role]")
		req := nexus.RegisterRequest{Name: args[0], Email: args[1], Password: args[2]}
		if len(args) > 3 {
			req.Role = args[3]
		}
		resp, err := client.Register(ctx, req)
		exitOnError(err)
		fmt.Printf("Registered as: %s (%s)\n", resp.User.Name, resp.User.ID)

	case "login":
		need(args, 2, "login <email> <password>")
		resp, err := client.Login(ctx, args[0], args[1])
		exitOnError(err)
		fmt.Printf("Logged in as: %s (%s)\n", resp.User.Name, resp.User.ID)

	case "send":
		need(args, 2, "send <recipient_id> <message>")
		msg, err := client.SendMessage(ctx, args[0], args[1])
		exitOnError(err)
		fmt.Printf("Sent: %s\n", msg.ID)

	case "inbox":
		convs, err := client.Conversations(ctx)
		exitOnError(err)
		for _, c := range convs {
			preview := ""
			if c.LastMessage != nil {
				preview = c.LastMessage.Content
				if len(preview) > 60 {
					preview = preview[:57] + "..."
				}
			}
			fmt.Printf("  %s  %-20s %2d unread  %s\n", c.ID, c.OtherUser.Name, c.UnreadCount, preview)
		}

	case "read":
		need(args, 1, "read <conversation_id> [page]")
		page := 1
		if len(args) > 1 {
			if p, err := strconv.Atoi(args[1]); err == nil {
				page = p
			}
		}
		resp, err := client.Messages(ctx, args[0], page)
		exitOnError(err)
		for _, msg := range resp.Messages {
			from := msg.SenderID
			if msg.Sender != nil {
				from = msg.Sender.Name
			}
			fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Local().Format("2006-01-02 15:04:05"), from, msg.Content)
			if msg.RecipientID == client.UserID && !msg.Read {
				exitOnError(client.MarkRead(ctx, msg.ID))
			}
		}
		fmt.Printf("-- page %d of %d\n", resp.Pagination.Page, resp.Pagination.TotalPages)

	case "skills":
		need(args, 1, "skills <query>")
		skills, err := client.SearchSkills(ctx, args[0])
		exitOnError(err)
		for _, s := range skills {
			fmt.Printf("  %s\n", s.Name)
		}

	case "cert":
		need(args, 2, "cert <platform> <credential_id>")
		cert, err := client.FetchCertification(ctx, args[0], args[1])
		exitOnError(err)
		printJSON(cert)

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`NexusNU CLI

Usage: nexus <command> [options]

Commands:
  register <name> <email> <password> [role]   Create an account
  login <email> <password>                    Sign in
  send <recipient_id> <message>               Send a direct message
  inbox                                       List conversations
  read <conversation_id> [page]               Read a conversation
  skills <query>                              Search skills
  cert <platform> <credential_id>             Look up a certification
  health                                      Check server health

Environment:
  NEXUS_URL      Server URL (default: http://localhost:8080)
  NEXUS_CONFIG   Config directory (default: ~/.nexusnu)`)
}

func need(args []string, n int, usageLine string) {
	if len(args) < n {
		fmt.Fprintln(os.Stderr, "Usage: nexus "+usageLine)
		os.Exit(1)
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
