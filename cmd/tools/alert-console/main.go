package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"crisis-alerts/internal/alert/dispatch"
	"crisis-alerts/internal/alert/form"
	"crisis-alerts/internal/common/auth"
	"crisis-alerts/internal/common/config"
	httpclient "crisis-alerts/internal/common/http"
	"crisis-alerts/internal/common/logger"
	"crisis-alerts/internal/models"
)

const defaultDispatchURL = "http://localhost:8080/api/alerts/dispatch"

// phoneList collects a repeatable --phone flag.
type phoneList []string

func (p *phoneList) String() string { return strings.Join(*p, ",") }

func (p *phoneList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

// settings are the connection defaults; flags override them.
type settings struct {
	url      string
	token    string
	timeout  time.Duration
	keycloak *auth.KeycloakClient
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, loadSettings()))
}

func loadSettings() settings {
	s := settings{url: defaultDispatchURL, timeout: 30 * time.Second}
	cfg, err := config.Load()
	if err != nil {
		return s
	}
	if cfg.HTTP.DispatchURL != "" {
		s.url = cfg.HTTP.DispatchURL
	}
	s.token = cfg.HTTP.AuthToken
	s.timeout = config.GetDuration(cfg.HTTP.Timeout)
	if kc := cfg.Auth.Keycloak; kc.Enabled && s.token == "" {
		s.keycloak = auth.NewKeycloakClient(kc.URL, kc.Realm, kc.ClientID, kc.ClientSecret)
	}
	return s
}

func run(args []string, out io.Writer, s settings) int {
	if len(args) < 1 {
		help(out)
		return 1
	}

	switch args[0] {
	case "send":
		return runSend(args[1:], out, s)
	case "probe":
		return runProbe(args[1:], out, s)
	case "help":
		help(out)
		return 0
	default:
		fmt.Fprintf(out, "Unknown command: %s\n", args[0])
		help(out)
		return 1
	}
}

func runSend(args []string, out io.Writer, s settings) int {
	cmd := flag.NewFlagSet("send", flag.ContinueOnError)
	cmd.SetOutput(out)

	endpoint := cmd.String("url", s.url, "Dispatch endpoint URL")
	token := cmd.String("token", s.token, "Bearer token for the dispatch API")
	crisisType := cmd.String("crisis-type", "other", "Crisis type (drought, economic, political, social, other)")
	region := cmd.String("region", "", "Affected region name")
	severity := cmd.String("severity", "medium", "Severity (low, medium, high, extreme)")
	to := cmd.String("to", "", "Recipient email address")
	subject := cmd.String("subject", "", "Override the generated subject")
	body := cmd.String("body", "", "Override the generated message")
	authorities := cmd.Bool("authorities", false, "CC the authorities list")
	ngos := cmd.Bool("ngos", false, "CC the NGO list")
	media := cmd.Bool("media", false, "CC the media list")
	sms := cmd.Bool("sms", false, "Also send SMS")
	smsAuthorities := cmd.Bool("sms-authorities", false, "Text the authorities list")
	smsNGOs := cmd.Bool("sms-ngos", false, "Text the NGO list")
	smsMedia := cmd.Bool("sms-media", false, "Text the media list")
	offline := cmd.Bool("offline", false, "Treat the network as unavailable")
	var phones phoneList
	cmd.Var(&phones, "phone", "SMS recipient in E.164 form (repeatable)")

	if err := cmd.Parse(args); err != nil {
		return 1
	}
	if *region == "" {
		fmt.Fprintln(out, "Error: --region is required.")
		cmd.Usage()
		return 1
	}

	crisis := models.CrisisContext{
		CrisisType: models.CrisisType(*crisisType),
		RegionName: *region,
		Severity:   models.Severity(*severity),
	}
	state := form.New(crisis)
	state.SetEmailValue(*to)
	patch := form.EmailPatch{
		NotifyAuthorities: authorities,
		NotifyNGOs:        ngos,
		NotifyMedia:       media,
	}
	if *subject != "" {
		patch.Subject = subject
	}
	if *body != "" {
		patch.Body = body
	}
	state.SetEmailField(patch)
	state.SetSmsField(form.SmsPatch{
		SmsEnabled:        sms,
		NotifyAuthorities: smsAuthorities,
		NotifyNGOs:        smsNGOs,
		NotifyMedia:       smsMedia,
	})
	state.ReplacePhoneNumbers(phones)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	coordinator, err := newCoordinator(ctx, out, s, *endpoint, *token, state, crisis)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return 1
	}

	online := !*offline && reachable(*endpoint, 3*time.Second)
	n, err := coordinator.Submit(ctx, online)
	printNotification(out, n)
	if err != nil {
		return 1
	}
	return 0
}

func runProbe(args []string, out io.Writer, s settings) int {
	cmd := flag.NewFlagSet("probe", flag.ContinueOnError)
	cmd.SetOutput(out)
	endpoint := cmd.String("url", s.url, "Dispatch endpoint URL")
	token := cmd.String("token", s.token, "Bearer token for the dispatch API")
	if err := cmd.Parse(args); err != nil {
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	coordinator, err := newCoordinator(ctx, out, s, *endpoint, *token, form.New(models.CrisisContext{}), models.CrisisContext{})
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return 1
	}

	status, err := coordinator.CheckProvider(ctx)
	if err != nil {
		fmt.Fprintf(out, "Provider check failed: %v\n", err)
		return 1
	}
	printBanner(out, status)
	return 0
}

func newCoordinator(ctx context.Context, out io.Writer, s settings, endpoint, token string, state *form.State, crisis models.CrisisContext) (*dispatch.Coordinator, error) {
	if token == "" && s.keycloak != nil {
		t, err := s.keycloak.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("keycloak login failed: %w", err)
		}
		token = t
	}

	client := httpclient.NewClient(s.timeout).WithBearerToken(token)
	return dispatch.NewCoordinator(dispatch.Options{
		Form:     state,
		Crisis:   crisis,
		Boundary: dispatch.NewHTTPBoundary(endpoint, client),
		Observer: func(result *models.DispatchResult) {
			if result.SMS != nil {
				printBanner(out, result.SMS)
			}
		},
		Logger: logger.NewNoOpLogger(),
	})
}

// reachable dials the endpoint's host to decide whether we are online.
func reachable(endpoint string, timeout time.Duration) bool {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Host
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}
	conn, err := net.DialTimeout("tcp", host, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func printNotification(out io.Writer, n dispatch.Notification) {
	fmt.Fprintf(out, "[%s] %s: %s\n", n.Kind, n.Title, n.Message)
}

func printBanner(out io.Writer, sms *models.SMSResult) {
	if sms.Configured {
		sender := "unknown sender"
		if sms.SenderPhone != nil {
			sender = *sms.SenderPhone
		}
		fmt.Fprintf(out, "SMS provider: configured (%s)\n", sender)
		return
	}
	reason := sms.ErrorMessage
	if reason == "" {
		reason = "no details"
	}
	fmt.Fprintf(out, "SMS provider: NOT configured (%s)\n", reason)
}

func help(out io.Writer) {
	fmt.Fprintln(out, "Usage: alert-console <command> [options]")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  send   Send an email alert, optionally with SMS")
	fmt.Fprintln(out, "  probe  Report whether the SMS provider is configured")
	fmt.Fprintln(out, "  help   Show this help")
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Run 'alert-console <command> -h' for command options.")
}
