package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	conversationresponses "jan-server/services/session-api/internal/interfaces/httpserver/responses/conversation"
)

var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Manage conversations through the session-api",
}

var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations, most recently active first",
	Args:  cobra.NoArgs,
	RunE:  runConversationsList,
}

var conversationsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a conversation",
	Args:  cobra.NoArgs,
	RunE:  runConversationsCreate,
}

var conversationsGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show a conversation with its messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsGet,
}

var conversationsSendCmd = &cobra.Command{
	Use:   "send [id] [message]",
	Short: "Send a message and print the assistant reply",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runConversationsSend,
}

var conversationsRenameCmd = &cobra.Command{
	Use:   "rename [id] [title]",
	Short: "Rename a conversation",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runConversationsRename,
}

var conversationsArchiveCmd = &cobra.Command{
	Use:   "archive [id]",
	Short: "Archive a conversation (use --restore to unarchive)",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsArchive,
}

var conversationsTagCmd = &cobra.Command{
	Use:   "tag [id] [tags...]",
	Short: "Replace the tags of a conversation",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runConversationsTag,
}

var conversationsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsDelete,
}

func init() {
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsCreateCmd)
	conversationsCmd.AddCommand(conversationsGetCmd)
	conversationsCmd.AddCommand(conversationsSendCmd)
	conversationsCmd.AddCommand(conversationsRenameCmd)
	conversationsCmd.AddCommand(conversationsArchiveCmd)
	conversationsCmd.AddCommand(conversationsTagCmd)
	conversationsCmd.AddCommand(conversationsDeleteCmd)

	flags := conversationsCmd.PersistentFlags()
	flags.String("server", "http://localhost:8080", "session-api base URL")
	flags.String("user", "", "Principal id sent in the dev header (auth disabled)")
	flags.String("user-header", "X-User-Id", "Dev principal header name")
	flags.String("token", "", "Bearer token (auth enabled)")
	flags.Duration("timeout", 90*time.Second, "Request timeout")

	conversationsListCmd.Flags().Int("page", 1, "Page number")
	conversationsListCmd.Flags().Int("limit", 20, "Page size (max 100)")
	conversationsListCmd.Flags().Bool("archived", false, "List archived conversations")
	conversationsListCmd.Flags().String("tag", "", "Only conversations with this tag")

	conversationsCreateCmd.Flags().String("title", "", "Initial title")
	conversationsCreateCmd.Flags().String("model", "", "Model for the conversation")

	conversationsSendCmd.Flags().String("model", "", "Model override for this message")

	conversationsArchiveCmd.Flags().Bool("restore", false, "Unarchive instead")
}

func clientFromFlags(cmd *cobra.Command) (*apiClient, error) {
	server, _ := cmd.Flags().GetString("server")
	user, _ := cmd.Flags().GetString("user")
	userHeader, _ := cmd.Flags().GetString("user-header")
	token, _ := cmd.Flags().GetString("token")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	verbose, _ := cmd.Flags().GetBool("verbose")

	if user == "" && token == "" {
		return nil, errors.New("either --user or --token is required")
	}
	return newAPIClient(server, user, token, userHeader, timeout, verbose), nil
}

func runConversationsList(cmd *cobra.Command, args []string) error {
	client, err := clientFromFlags(cmd)
	if err != nil {
		return err
	}
	var opts listOptions
	opts.Page, _ = cmd.Flags().GetInt("page")
	opts.Limit, _ = cmd.Flags().GetInt("limit")
	opts.Archived, _ = cmd.Flags().GetBool("archived")
	opts.Tag, _ = cmd.Flags().GetString("tag")

	page, err := client.List(cmd.Context(), opts)
	if err != nil {
		return err
	}
	printList(cmd.OutOrStdout(), page)
	return nil
}

func runConversationsCreate(cmd *cobra.Command, args []string) error {
	client, err := clientFromFlags(cmd)
	if err != nil {
		return err
	}
	title, _ := cmd.Flags().GetString("title")
	model, _ := cmd.Flags().GetString("model")

	conv, err := client.Create(cmd.Context(), title, model)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s, %s)\n", conv.ID, conv.Title, conv.Model)
	return nil
}

func runConversationsGet(cmd *cobra.Command, args []string) error {
	client, err := clientFromFlags(cmd)
	if err != nil {
		return err
	}
	conv, err := client.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	printConversation(cmd.OutOrStdout(), conv)
	return nil
}

func runConversationsSend(cmd *cobra.Command, args []string) error {
	client, err := clientFromFlags(cmd)
	if err != nil {
		return err
	}
	model, _ := cmd.Flags().GetString("model")

	resp, err := client.Send(cmd.Context(), args[0], strings.Join(args[1:], " "), model)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.Conversation != nil {
			if n := len(apiErr.Conversation.Messages); n > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), apiErr.Conversation.Messages[n-1].Content)
			}
		}
		return err
	}

	if resp.Reply != nil {
		fmt.Fprintln(cmd.OutOrStdout(), resp.Reply.Content)
	}
	if resp.Usage != nil {
		line := fmt.Sprintf("[%s, %d tokens", resp.Usage.ModelID, resp.Usage.Tokens)
		if resp.Usage.EstimatedCostUSD != nil {
			line += ", $" + resp.Usage.EstimatedCostUSD.String()
		}
		fmt.Fprintln(cmd.ErrOrStderr(), line+"]")
	}
	return nil
}

func runConversationsRename(cmd *cobra.Command, args []string) error {
	client, err := clientFromFlags(cmd)
	if err != nil {
		return err
	}
	conv, err := client.Rename(cmd.Context(), args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "renamed %s to %q\n", conv.ID, conv.Title)
	return nil
}

func runConversationsArchive(cmd *cobra.Command, args []string) error {
	client, err := clientFromFlags(cmd)
	if err != nil {
		return err
	}
	restore, _ := cmd.Flags().GetBool("restore")

	conv, err := client.Archive(cmd.Context(), args[0], !restore)
	if err != nil {
		return err
	}
	state := "archived"
	if !conv.Archived {
		state = "restored"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", state, conv.ID)
	return nil
}

func runConversationsTag(cmd *cobra.Command, args []string) error {
	client, err := clientFromFlags(cmd)
	if err != nil {
		return err
	}
	conv, err := client.SetTags(cmd.Context(), args[0], args[1:])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s tags: %s\n", conv.ID, strings.Join(conv.Tags, ", "))
	return nil
}

func runConversationsDelete(cmd *cobra.Command, args []string) error {
	client, err := clientFromFlags(cmd)
	if err != nil {
		return err
	}
	if err := client.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}

func printList(out io.Writer, page *conversationresponses.ConversationListResponse) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tMODEL\tMESSAGES\tTOKENS\tLAST ACTIVITY")
	for _, c := range page.Data {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", c.ID, c.Title, c.Model, c.MessageCount, c.TotalTokens, c.LastActivity.Format(time.RFC3339))
	}
	_ = w.Flush()
	fmt.Fprintf(out, "page %d of %d (%d total)\n", page.Page, page.TotalPages, page.Total)
}

func printConversation(out io.Writer, conv *conversationresponses.ConversationResponse) {
	fmt.Fprintf(out, "%s  %s  [%s]  %d tokens\n", conv.ID, conv.Title, conv.Model, conv.TotalTokens)
	if len(conv.Tags) > 0 {
		fmt.Fprintf(out, "tags: %s\n", strings.Join(conv.Tags, ", "))
	}
	for _, m := range conv.Messages {
		fmt.Fprintf(out, "\n%s (%s):\n%s\n", m.Role, m.CreatedAt.Format(time.RFC3339), m.Content)
	}
}
