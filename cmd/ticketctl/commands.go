package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-pipeline/internal/api/dto"
	"github.com/spec-kit/ticket-pipeline/internal/auth"
	"github.com/spec-kit/ticket-pipeline/internal/classifier"
	"github.com/spec-kit/ticket-pipeline/internal/config"
	"github.com/spec-kit/ticket-pipeline/internal/domain"
	"github.com/spec-kit/ticket-pipeline/internal/mail"
	"github.com/spec-kit/ticket-pipeline/internal/service"
	"github.com/spec-kit/ticket-pipeline/internal/textanalysis"
)

func newTable(w io.Writer, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(header)
	return tw
}

func analyticsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show ticket analytics for a trailing window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var a service.Analytics
			q := url.Values{"days": {strconv.Itoa(days)}}
			if err := newAPIClient().get(cmd.Context(), "/analytics", q, &a); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(a)
			}
			renderAnalytics(cmd.OutOrStdout(), &a)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "window size in days")
	return cmd
}

func renderAnalytics(w io.Writer, a *service.Analytics) {
	tw := newTable(w, table.Row{"Metric", "Value"})
	tw.AppendRow(table.Row{"Window (days)", a.Days})
	tw.AppendRow(table.Row{"Total tickets", a.TotalTickets})
	tw.AppendRow(table.Row{"Open tickets", a.OpenTickets})
	tw.AppendRow(table.Row{"Resolved tickets", a.ResolvedTickets})
	tw.AppendRow(table.Row{"Resolution rate", fmt.Sprintf("%.1f%%", a.ResolutionRate)})
	tw.AppendRow(table.Row{"Avg resolution (h)", fmt.Sprintf("%.2f", a.AverageResolutionTime)})
	tw.Render()

	for _, dist := range []struct {
		name   string
		counts map[string]int
	}{
		{"Priority", a.PriorityDistribution},
		{"Category", a.CategoryDistribution},
		{"Sentiment", a.SentimentDistribution},
		{"Day", a.DailyTicketCount},
	} {
		dt := newTable(w, table.Row{dist.name, "Tickets"})
		keys := make([]string, 0, len(dist.counts))
		for k := range dist.counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			dt.AppendRow(table.Row{k, dist.counts[k]})
		}
		dt.Render()
	}
}

func ticketsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "tickets", Short: "Inspect tickets"}

	var status, priority, category, assignee string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List tickets, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			for key, val := range map[string]string{"status": status, "priority": priority, "category": category, "assignedTo": assignee} {
				if val != "" {
					q.Set(key, val)
				}
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			var items []dto.TicketSummary
			if err := newAPIClient().get(cmd.Context(), "/tickets", q, &items); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(items)
			}
			tw := newTable(cmd.OutOrStdout(), table.Row{"ID", "Title", "Status", "Priority", "Category", "Assignee", "Urgency", "Created"})
			for _, t := range items {
				tw.AppendRow(table.Row{t.ID, t.Title, t.Status, t.Priority, t.Category, t.AssignedTo, t.AIUrgencyScore, t.CreatedAt.Format("2006-01-02 15:04")})
			}
			tw.Render()
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "status filter")
	list.Flags().StringVar(&priority, "priority", "", "priority filter")
	list.Flags().StringVar(&category, "category", "", "category filter")
	list.Flags().StringVar(&assignee, "assigned-to", "", "assignee filter")
	list.Flags().IntVar(&limit, "limit", 0, "maximum number of tickets")
	cmd.AddCommand(list)
	return cmd
}

func mailCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "mail", Short: "Email transport monitoring"}
	cmd.AddCommand(&cobra.Command{
		Use:   "quota",
		Short: "Show the rolling 24h send quota",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var q mail.Quota
			if err := newAPIClient().get(cmd.Context(), "/mail/quota", nil, &q); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(q)
			}
			tw := newTable(cmd.OutOrStdout(), table.Row{"Max 24h", "Sent last 24h", "Max send rate"})
			tw.AppendRow(table.Row{q.Max24h, q.SentLast24h, q.MaxSendRatePer})
			tw.Render()
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show hourly delivery statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var points []mail.StatPoint
			if err := newAPIClient().get(cmd.Context(), "/mail/stats", nil, &points); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(points)
			}
			tw := newTable(cmd.OutOrStdout(), table.Row{"Hour", "Attempts", "Bounces", "Complaints", "Rejects"})
			for _, p := range points {
				tw.AppendRow(table.Row{p.Timestamp.Format("2006-01-02 15:00"), p.DeliveryAttempts, p.Bounces, p.Complaints, p.Rejects})
			}
			tw.Render()
			return nil
		},
	})
	return cmd
}

func classifyCmd() *cobra.Command {
	var title, description string
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify ticket text with the configured rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			res, err := classifyText(cmd.Context(), cfg.Classifier, title, description)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{
					"priority":     res.Priority,
					"category":     res.Category,
					"sentiment":    res.Sentiment,
					"keyPhrases":   res.KeyPhrases,
					"confidence":   res.Confidence,
					"escalated":    res.Escalated,
					"urgencyScore": classifier.UrgencyScore(res.Classification),
					"status":       res.Status,
				})
			}
			renderClassification(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "ticket title")
	cmd.Flags().StringVar(&description, "description", "", "ticket description")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func classifyText(ctx context.Context, cfg config.ClassifierConfig, title, description string) (classifier.Result, error) {
	rules, err := classifier.LoadRuleSet(cfg.RulesFile)
	if err != nil {
		return classifier.Result{}, err
	}
	var analyzer textanalysis.Analyzer = textanalysis.NewLexiconAnalyzer()
	if cfg.NLPEndpoint != "" {
		analyzer = textanalysis.NewHTTPAnalyzer(cfg.NLPEndpoint, cfg.NLPTimeout, zap.NewNop())
	}
	engine := classifier.NewEngine(analyzer, rules, cfg.Language, zap.NewNop())
	return engine.Classify(ctx, title, description), nil
}

func renderClassification(w io.Writer, res classifier.Result) {
	tw := newTable(w, table.Row{"Field", "Value"})
	tw.AppendRow(table.Row{"Priority", res.Priority})
	tw.AppendRow(table.Row{"Category", res.Category})
	tw.AppendRow(table.Row{"Sentiment", res.Sentiment})
	tw.AppendRow(table.Row{"Confidence", fmt.Sprintf("%.2f", res.Confidence)})
	tw.AppendRow(table.Row{"Escalated", res.Escalated})
	tw.AppendRow(table.Row{"Urgency", classifier.UrgencyScore(res.Classification)})
	tw.AppendRow(table.Row{"Key phrases", strings.Join(res.KeyPhrases, ", ")})
	tw.AppendRow(table.Row{"Status", res.Status})
	tw.Render()
}

func tokenCmd() *cobra.Command {
	var name, actorType string
	var ttl int
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token identifying a caller",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, expiresAt, err := auth.NewTokenManager(cfg.Auth.JWTSecret, ttl).GenerateToken(name, domain.AuthorType(actorType))
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"token": token, "expiresAt": expiresAt})
			}
			fmt.Fprintln(os.Stdout, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "caller display name")
	cmd.Flags().StringVar(&actorType, "type", string(domain.AuthorTypeAdmin), "actor type: admin, customer, system or ai")
	cmd.Flags().IntVar(&ttl, "ttl-minutes", 60, "token lifetime")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
