package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/san-kum/pendctl/internal/config"
	"github.com/san-kum/pendctl/internal/controller"
	"github.com/san-kum/pendctl/internal/driver"
	"github.com/san-kum/pendctl/internal/integrators"
	"github.com/san-kum/pendctl/internal/lifecycle"
	"github.com/san-kum/pendctl/internal/metrics"
	"github.com/san-kum/pendctl/internal/motor"
	"github.com/san-kum/pendctl/internal/node"
	"github.com/san-kum/pendctl/internal/physics"
	"github.com/san-kum/pendctl/internal/rtproc"
	"github.com/san-kum/pendctl/internal/sim"
	"github.com/san-kum/pendctl/internal/storage"
	"github.com/san-kum/pendctl/internal/viz"
)

var (
	dataDir    string
	verbose    bool
	configFile string

	// run flags
	gains        []float64
	deadlineUS   uint
	periodUS     uint
	priority     int
	affinity     int
	lockMemory   bool
	lockMemoryMB int
	autoStart    bool
	live         bool
	requireRT    bool
	runFor       float64
	plantName    string

	// simulate flags
	dt           float64
	duration     float64
	theta        float64
	omega        float64
	pos          float64
	vel          float64
	integrator   string
	saveRun      bool
	stableThresh float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pendctl",
		Short: "deadline-monitored inverted pendulum control node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".pendctl", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the control node against the simulated plant",
		RunE:  runNode,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	runCmd.Flags().Float64SliceVar(&gains, "gains", nil, "feedback gains (4 values)")
	runCmd.Flags().UintVar(&deadlineUS, "deadline", config.DefaultDeadlineUS, "update deadline in microseconds")
	runCmd.Flags().UintVar(&periodUS, "period", config.DefaultPeriodUS, "plant update period in microseconds")
	runCmd.Flags().IntVar(&priority, "priority", 0, "SCHED_FIFO priority (0 leaves scheduling alone)")
	runCmd.Flags().IntVar(&affinity, "affinity", 0, "CPU to pin the loop to (0 leaves affinity alone)")
	runCmd.Flags().BoolVar(&lockMemory, "lock-memory", false, "lock process memory")
	runCmd.Flags().IntVar(&lockMemoryMB, "lock-memory-mb", 0, "prefault this much locked memory")
	runCmd.Flags().BoolVar(&autoStart, "auto-start", false, "configure and activate immediately")
	runCmd.Flags().BoolVar(&live, "live", false, "interactive terminal monitor")
	runCmd.Flags().BoolVar(&requireRT, "require-rt", false, "abort if real-time settings are denied")
	runCmd.Flags().Float64Var(&runFor, "time", 0, "run duration in seconds (0 runs until interrupted)")
	runCmd.Flags().StringVar(&plantName, "plant", "cartpole", "simulated plant (cartpole, pendulum)")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "offline closed-loop cart-pole simulation",
		RunE:  runSimulation,
	}
	simulateCmd.Flags().Float64Var(&dt, "dt", 0.001, "timestep")
	simulateCmd.Flags().Float64Var(&duration, "time", 10.0, "duration")
	simulateCmd.Flags().Float64Var(&theta, "theta", 0.1, "initial pole angle")
	simulateCmd.Flags().Float64Var(&omega, "omega", 0.0, "initial pole angular velocity")
	simulateCmd.Flags().Float64Var(&pos, "pos", 0.0, "initial cart position")
	simulateCmd.Flags().Float64Var(&vel, "vel", 0.0, "initial cart velocity")
	simulateCmd.Flags().Float64SliceVar(&gains, "gains", nil, "feedback gains (4 values)")
	simulateCmd.Flags().StringVar(&integrator, "integrator", "rk4", "integrator (euler, rk4)")
	simulateCmd.Flags().BoolVar(&saveRun, "save", false, "save trajectory to the data directory")
	simulateCmd.Flags().Float64Var(&stableThresh, "stable-threshold", 0.2, "pole angle counted as balanced")

	teleopCmd := &cobra.Command{
		Use:   "teleop [position]",
		Short: "offline setpoint-tracking demonstration",
		Long: "Runs the closed loop offline with the cart target at zero for the\n" +
			"first half of the run, then moves the target to the given position\n" +
			"and plots the cart tracking it.",
		Args: cobra.ExactArgs(1),
		RunE: runTeleop,
	}
	teleopCmd.Flags().Float64Var(&dt, "dt", 0.001, "timestep")
	teleopCmd.Flags().Float64Var(&duration, "time", 10.0, "total duration")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved simulation runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	configCmd := &cobra.Command{
		Use:   "config [path]",
		Short: "write the default config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "pendctl.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			if err := config.Save(path, config.DefaultConfig()); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, simulateCmd, teleopCmd, listCmd, plotCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()
}

func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	// CLI flags override the file.
	if cmd.Flags().Changed("gains") {
		cfg.FeedbackGains = gains
	}
	if cmd.Flags().Changed("deadline") {
		cfg.DeadlineUS = deadlineUS
	}
	if cmd.Flags().Changed("period") {
		cfg.PeriodUS = periodUS
	}
	if cmd.Flags().Changed("priority") {
		cfg.Proc.ProcessPriority = priority
	}
	if cmd.Flags().Changed("affinity") {
		cfg.Proc.CPUAffinity = affinity
	}
	if cmd.Flags().Changed("lock-memory") {
		cfg.Proc.LockMemory = lockMemory
	}
	if cmd.Flags().Changed("lock-memory-mb") {
		cfg.Proc.LockMemorySizeMB = lockMemoryMB
	}
	if cmd.Flags().Changed("auto-start") {
		cfg.AutoStart = autoStart
	}
	return cfg, cfg.Validate()
}

func runNode(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	var plant motor.Plant
	switch plantName {
	case "cartpole":
		plant, err = motor.NewCartPoleSim(cfg.Period(), cfg.InitialState())
	case "pendulum":
		// Bare torque-driven joint; the stock gains are cart-pole scale,
		// so pass joint-scale gains with --gains.
		plant, err = motor.NewPendulumSim(cfg.Period())
	default:
		return fmt.Errorf("unknown plant: %s (cartpole, pendulum)", plantName)
	}
	if err != nil {
		return err
	}
	drv, err := driver.New(plant, cfg.Period(), log)
	if err != nil {
		return err
	}
	n, err := node.New(cfg, drv, rtproc.NewSystem(), log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go drv.Run(ctx, n.Mailbox())

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- n.RunLoop(ctx, requireRT)
	}()

	if cfg.AutoStart {
		if err := n.Configure(); err != nil {
			cancel()
			return err
		}
		if err := n.Activate(); err != nil {
			cancel()
			return err
		}
	}

	var runErr error
	loopDone := false
	if live {
		runErr = viz.Run(n)
		cancel()
	} else {
		var timeout <-chan time.Time
		if runFor > 0 {
			timer := time.NewTimer(time.Duration(runFor * float64(time.Second)))
			defer timer.Stop()
			timeout = timer.C
		}
		select {
		case runErr = <-loopErr:
			// Loop bailed before the run ended, e.g. a --require-rt denial.
			loopDone = true
		case <-ctx.Done():
		case <-timeout:
		}
		cancel()
	}

	// Wind down through the lifecycle so the diagnostic snapshot is
	// emitted before the node is finalized.
	if n.LifecycleState() == lifecycle.Active {
		if err := n.Deactivate(); err != nil {
			log.Warn().Err(err).Msg("deactivate on shutdown failed")
		}
	}
	if err := n.Shutdown(); err != nil {
		log.Warn().Err(err).Msg("shutdown failed")
	}

	if !loopDone {
		select {
		case err := <-loopErr:
			if runErr == nil {
				runErr = err
			}
		case <-time.After(time.Second):
			log.Warn().Msg("control loop did not stop in time")
		}
	}
	if runErr != nil {
		return runErr
	}

	log.Info().Uint64("missed_deadlines", n.MissedDeadlines()).Msg("node stopped")
	return nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	k := config.DefaultGains
	if cmd.Flags().Changed("gains") {
		k = gains
	}
	ctrl, err := controller.New(k)
	if err != nil {
		return err
	}

	var integ sim.Integrator
	switch integrator {
	case "euler":
		integ = integrators.NewEuler()
	case "rk4":
		integ = integrators.NewRK4()
	default:
		return fmt.Errorf("unknown integrator: %s (euler, rk4)", integrator)
	}

	s := sim.New(physics.NewCartPole(), integ, sim.NewFeedback(ctrl))
	s.AddMetric(metrics.NewControlEffort())
	s.AddMetric(metrics.NewAngleRMS())
	s.AddMetric(metrics.NewStability(stableThresh))

	fmt.Println("running cart-pole simulation...")
	start := time.Now()

	x0 := sim.State{pos, vel, theta, omega}
	result, err := s.Run(context.Background(), x0, sim.Config{
		Dt:            dt,
		Duration:      duration,
		ValidateState: true,
	})
	if err != nil {
		var stepErr sim.StepError
		if !errors.As(err, &stepErr) {
			return err
		}
		fmt.Printf("diverged: %v\n", stepErr)
	}

	fmt.Printf("completed in %v\n", time.Since(start))
	fmt.Printf("steps: %d\n", result.StepsTaken)
	fmt.Println("\nmetrics:")
	for name, val := range result.Metrics {
		fmt.Printf("  %s: %.6f\n", name, val)
	}

	angles := make([]float64, len(result.States))
	for i, x := range result.States {
		angles[i] = x[2]
	}
	fmt.Println()
	fmt.Println(asciigraph.Plot(angles,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("pole angle vs time"),
	))

	if saveRun {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(k, dt, duration, integrator, result)
		if err != nil {
			return err
		}
		fmt.Printf("\nrun id: %s\n", runID)
	}
	return nil
}

func runTeleop(cmd *cobra.Command, args []string) error {
	target, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid position %q: %w", args[0], err)
	}

	ctrl, err := controller.New(config.DefaultGains)
	if err != nil {
		return err
	}
	fb := sim.NewFeedback(ctrl)
	s := sim.New(physics.NewCartPole(), integrators.NewRK4(), fb)

	half := sim.Config{Dt: dt, Duration: duration / 2, ValidateState: true}
	ctx := context.Background()

	settle, err := s.Run(ctx, sim.State{0, 0, 0.05, 0}, half)
	if err != nil {
		return err
	}

	fb.SetTarget(target, 0)
	track, err := s.Run(ctx, settle.States[len(settle.States)-1], half)
	if err != nil {
		return err
	}

	positions := make([]float64, 0, len(settle.States)+len(track.States)-1)
	for _, x := range settle.States {
		positions = append(positions, x[0])
	}
	for _, x := range track.States[1:] {
		positions = append(positions, x[0])
	}

	fmt.Println(asciigraph.Plot(positions,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("cart position, target %.2f m from t=%.1fs", target, duration/2)),
	))

	final := track.States[len(track.States)-1]
	fmt.Printf("\nfinal cart position: %.4f m (target %.2f m)\n", final[0], target)
	fmt.Printf("final pole angle:    %.4f rad\n", final[2])
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	states, forces, times, err := st.LoadStates(runID)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\n", runID)
	fmt.Printf("samples: %d (%.2fs)\n\n", len(states), times[len(times)-1])

	series := []struct {
		caption string
		pick    func(i int) float64
	}{
		{"cart position", func(i int) float64 { return states[i][0] }},
		{"pole angle", func(i int) float64 { return states[i][2] }},
		{"force command", func(i int) float64 { return forces[i] }},
	}
	for _, sr := range series {
		data := make([]float64, len(states))
		for i := range states {
			data[i] = sr.pick(i)
		}
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(sr.caption),
		))
		fmt.Println()
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tDURATION\tDT\tINTEG\tANGLE_RMS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%.2fs\t%.4fs\t%s\t%.4f\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Dt,
			run.Integrator,
			run.Metrics["pole_angle_rms"],
		)
	}
	return w.Flush()
}
