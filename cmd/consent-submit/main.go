// cmd/consent-submit/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"privacy-consent/internal/common/config"
	commonhttp "privacy-consent/internal/common/http"
	"privacy-consent/internal/common/logger"
	"privacy-consent/internal/common/observability"
	"privacy-consent/internal/consent/encoder"
	"privacy-consent/internal/consent/iplookup"
	"privacy-consent/internal/consent/render"
	"privacy-consent/internal/consent/submission"
	"privacy-consent/internal/consent/validator"
	"privacy-consent/internal/models"
	"privacy-consent/pkg/registry"
)

type options struct {
	configPath  string
	formPath    string
	registry    string
	deliveryURL string
	diagnostics string
	logLevel    string
	slots       map[models.AttachmentSlot]*string
	env         render.ClientEnv
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{slots: map[models.AttachmentSlot]*string{}}

	root := &cobra.Command{
		Use:           "consent-submit",
		Short:         "Fill, render and deliver a patient privacy consent form",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default: configs/config.yaml)")
	root.PersistentFlags().StringVarP(&opts.formPath, "form", "f", "", "YAML form file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")
	root.PersistentFlags().StringVar(&opts.registry, "registry", "", "relabelled form registry (default: built-in)")
	for _, slot := range models.AllSlots {
		p := new(string)
		opts.slots[slot] = p
		root.PersistentFlags().StringVar(p, slotFlag(slot), "", fmt.Sprintf("path of the %s upload", slot))
	}
	_ = root.MarkPersistentFlagRequired("form")

	submit := &cobra.Command{
		Use:   "submit",
		Short: "Validate, render and send the form to the delivery endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, opts)
		},
	}
	submit.Flags().StringVar(&opts.deliveryURL, "delivery-url", "", "override client.delivery_url")
	submit.Flags().StringVar(&opts.diagnostics, "diagnostics", "", "write the diagnostic log (JSON lines) to this file")
	submit.Flags().StringVar(&opts.env.UserAgent, "user-agent", "", "user agent recorded in the document")
	submit.Flags().StringVar(&opts.env.ScreenResolution, "screen", "", "screen resolution recorded in the document")
	submit.Flags().StringVar(&opts.env.Platform, "platform", "", "platform recorded in the document")
	submit.Flags().StringVar(&opts.env.Language, "language", "", "language recorded in the document")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check the form and its uploads without sending anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts)
		},
	}

	root.AddCommand(submit, validate)
	return root
}

// slotFlag turns documentoFrentePartner into front-partner.
func slotFlag(slot models.AttachmentSlot) string {
	name := "back"
	if slot.IsFront() {
		name = "front"
	}
	if slot.IsPartner() {
		name += "-partner"
	}
	return name
}

func (o *options) overrides() map[models.AttachmentSlot]string {
	out := make(map[models.AttachmentSlot]string, len(o.slots))
	for slot, p := range o.slots {
		out[slot] = *p
	}
	return out
}

func (o *options) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFromFile(o.configPath)
	}
	return config.Load()
}

// loadRegistry returns nil for the built-in registry.
func (o *options) loadRegistry() (*registry.FormRegistry, error) {
	if o.registry == "" {
		return nil, nil
	}
	reg, err := registry.LoadRegistry(o.registry)
	if err != nil {
		return nil, fmt.Errorf("load registry %s: %w", o.registry, err)
	}
	return reg, nil
}

func (o *options) loadRequest() (*requestFile, error) {
	f, err := os.Open(o.formPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseRequest(f)
}

func runValidate(cmd *cobra.Command, opts *options) error {
	rf, err := opts.loadRequest()
	if err != nil {
		return err
	}
	log := logger.NewStructured(opts.logLevel, "console", "stderr")

	form := rf.FormRecord.Clone()
	form.Normalize()
	enc := encoder.New(afero.NewOsFs(), log)
	srcs := rf.sources(opts.overrides())
	if !form.IncludePartner {
		delete(srcs, models.SlotFrontPartner)
		delete(srcs, models.SlotBackPartner)
	}
	atts, err := enc.InspectAll(srcs)
	if err != nil {
		return err
	}
	reg, err := opts.loadRegistry()
	if err != nil {
		return err
	}

	res := validator.New(reg).Validate(form, atts...)
	out := cmd.OutOrStdout()
	if res.Valid {
		fmt.Fprintln(out, "form is valid")
		return nil
	}
	for _, e := range res.Errors {
		fmt.Fprintf(out, "%-24s %s\n", e.Field, e.Message)
	}
	return fmt.Errorf("%d field(s) invalid", len(res.Errors))
}

func runSubmit(cmd *cobra.Command, opts *options) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.deliveryURL != "" {
		cfg.Client.DeliveryURL = opts.deliveryURL
	}

	rf, err := opts.loadRequest()
	if err != nil {
		return err
	}
	reg, err := opts.loadRegistry()
	if err != nil {
		return err
	}
	env := rf.Env
	if opts.env.UserAgent != "" {
		env.UserAgent = opts.env.UserAgent
	}
	if opts.env.ScreenResolution != "" {
		env.ScreenResolution = opts.env.ScreenResolution
	}
	if opts.env.Platform != "" {
		env.Platform = opts.env.Platform
	}
	if opts.env.Language != "" {
		env.Language = opts.env.Language
	}

	log := logger.NewStructured(opts.logLevel, "console", "stderr")

	obs, err := observability.New("consent-submit")
	if err != nil {
		log.Warn("observability disabled", map[string]interface{}{"error": err.Error()})
	}
	defer obs.Shutdown(context.Background())

	scfg := submission.ConfigFromAppConfig(cfg)
	scfg.UserAgent = "consent-submit/" + cfg.App.Version
	if err := scfg.Validate(); err != nil {
		return fmt.Errorf("client config: %w", err)
	}

	svc := submission.NewService(submission.ServiceDependencies{
		Validator: validator.New(reg),
		Resolver: iplookup.NewResolver(iplookup.Config{
			Services:   cfg.Client.IPServices,
			ReflectURL: cfg.Client.IPReflectURL,
			Timeout:    config.GetDuration(cfg.Client.IPLookupTimeout),
		}, nil, log),
		Renderer:      render.New(render.WithLogger(log)),
		Encoder:       encoder.New(afero.NewOsFs(), log),
		Transport:     commonhttp.NewClient(scfg.Policy.AttemptTimeout).WithUserAgent(scfg.UserAgent),
		Diagnostics:   submission.NewDiagnosticLog(cfg.Client.DiagnosticsCapacity),
		Observability: obs,
		Logger:        log,
	}, scfg)

	out := cmd.OutOrStdout()
	session := submission.NewSession()
	session.Subscribe(func(t submission.Transition) {
		line := fmt.Sprintf("%s -> %s", t.From, t.To)
		if t.Attempt > 0 {
			line += fmt.Sprintf(" (tentativo %d/%d)", t.Attempt, scfg.Policy.MaxAttempts)
		}
		fmt.Fprintln(out, line)
	})
	session.Edit(&rf.FormRecord)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, submitErr := svc.Submit(ctx, session, submission.Request{
		Form:    &rf.FormRecord,
		Sources: rf.sources(opts.overrides()),
		Env:     env,
	})

	if opts.diagnostics != "" {
		if err := writeDiagnostics(opts.diagnostics, svc.Diagnostics()); err != nil {
			log.Warn("diagnostics not written", map[string]interface{}{"error": err.Error()})
		}
	}

	if submitErr != nil {
		if outcome != nil && outcome.Validation != nil {
			for _, e := range outcome.Validation.Errors {
				fmt.Fprintf(out, "%-24s %s\n", e.Field, e.Message)
			}
			return fmt.Errorf("form not valid")
		}
		if outcome != nil && outcome.Message != "" {
			fmt.Fprintln(out, outcome.Message)
		}
		return submitErr
	}

	fmt.Fprintf(out, "%s\nDocumento: %s\nIdentificativo: %s\nIP: %s (%s)\nTentativi: %d\n",
		outcome.Response.Message,
		outcome.Response.DocumentID,
		outcome.IntegrityID,
		outcome.IP, outcome.IPSource,
		outcome.Attempts,
	)
	return nil
}

func writeDiagnostics(path string, d *submission.DiagnosticLog) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = d.WriteTo(f)
	return err
}
