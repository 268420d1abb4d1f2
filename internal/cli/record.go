package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rpggio/tally/internal/domain/record"
)

// recordFlags binds the editable record fields to a command's flags.
type recordFlags struct {
	attemptID   string
	duration    int64
	projectID   string
	projectName string
	operationID string
	timeLimit   int64
	dateAudited string
	score       int
	feedback    string
	locale      string
	bonusPaid   bool
}

func (f *recordFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.attemptID, "attempt", "", "Attempt id")
	fs.Int64Var(&f.duration, "duration", 0, "Tracked seconds")
	fs.StringVar(&f.projectID, "project-id", "", "Project id")
	fs.StringVar(&f.projectName, "project", "", "Project name")
	fs.StringVar(&f.operationID, "operation", "", "Operation id")
	fs.Int64Var(&f.timeLimit, "time-limit", 0, "Time limit in seconds")
	fs.StringVar(&f.dateAudited, "audited", "", "Audit date, YYYY-MM-DD")
	fs.IntVar(&f.score, "score", 0, "Score, 0 for unscored or 1 to 5")
	fs.StringVar(&f.feedback, "feedback", "", "Feedback text")
	fs.StringVar(&f.locale, "locale", "", "Locale")
	fs.BoolVar(&f.bonusPaid, "bonus-paid", false, "Whether bonus was paid")
}

func (f *recordFlags) fields() record.Fields {
	return record.Fields{
		AttemptID:        f.attemptID,
		DurationSeconds:  f.duration,
		ProjectID:        f.projectID,
		ProjectName:      f.projectName,
		OperationID:      f.operationID,
		TimeLimitSeconds: f.timeLimit,
		DateAudited:      f.dateAudited,
		Score:            f.score,
		Feedback:         f.feedback,
		Locale:           f.locale,
		BonusPaid:        f.bonusPaid,
	}
}

// changes returns only the fields whose flags were set.
func (f *recordFlags) changes(fs *pflag.FlagSet) record.Changes {
	var c record.Changes
	if fs.Changed("attempt") {
		c.AttemptID = &f.attemptID
	}
	if fs.Changed("duration") {
		c.DurationSeconds = &f.duration
	}
	if fs.Changed("project-id") {
		c.ProjectID = &f.projectID
	}
	if fs.Changed("project") {
		c.ProjectName = &f.projectName
	}
	if fs.Changed("operation") {
		c.OperationID = &f.operationID
	}
	if fs.Changed("time-limit") {
		c.TimeLimitSeconds = &f.timeLimit
	}
	if fs.Changed("audited") {
		c.DateAudited = &f.dateAudited
	}
	if fs.Changed("score") {
		c.Score = &f.score
	}
	if fs.Changed("feedback") {
		c.Feedback = &f.feedback
	}
	if fs.Changed("locale") {
		c.Locale = &f.locale
	}
	if fs.Changed("bonus-paid") {
		c.BonusPaid = &f.bonusPaid
	}
	return c
}

var (
	addFlags    recordFlags
	setFlags    recordFlags
	listOffset  int
	listLimit   int
	listVerbose bool
)

func init() {
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Manage records",
	}

	addCmd := &cobra.Command{
		Use:   "add <week-id>",
		Short: "Add a record to a week",
		Args:  cobra.ExactArgs(1),
		RunE:  runRecordAdd,
	}
	addFlags.register(addCmd.Flags())

	lsCmd := &cobra.Command{
		Use:   "ls <week-id>",
		Short: "List a week's records",
		Args:  cobra.ExactArgs(1),
		RunE:  runRecordList,
	}
	lsCmd.Flags().IntVar(&listOffset, "offset", 0, "First row, 0-based")
	lsCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "Maximum rows")
	lsCmd.Flags().BoolVarP(&listVerbose, "verbose", "v", false, "Also print the loaded chunk window to stderr")

	setCmd := &cobra.Command{
		Use:   "set <record-id>",
		Short: "Change fields of a record",
		Args:  cobra.ExactArgs(1),
		RunE:  runRecordSet,
	}
	setFlags.register(setCmd.Flags())

	rmCmd := &cobra.Command{
		Use:   "rm <record-id>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE:  runRecordRemove,
	}

	recordCmd.AddCommand(addCmd, lsCmd, setCmd, rmCmd)
	RootCmd.AddCommand(recordCmd)
}

func runRecordAdd(cmd *cobra.Command, args []string) error {
	weekID, err := parseID("week id", args[0])
	if err != nil {
		return err
	}
	return withApp(func(a *app) error {
		id, err := a.data.CreateRecord(cmd.Context(), weekID, addFlags.fields())
		if err != nil {
			return err
		}
		rec, err := a.data.GetRecord(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rec)
	})
}

func runRecordList(cmd *cobra.Command, args []string) error {
	weekID, err := parseID("week id", args[0])
	if err != nil {
		return err
	}
	if listOffset < 0 || listLimit < 0 {
		return fmt.Errorf("%w: offset and limit must not be negative", record.ErrInvalidInput)
	}
	return withApp(func(a *app) error {
		page, err := readPage(cmd, a, weekID, listOffset, listLimit)
		if err != nil {
			return err
		}
		if listVerbose {
			if err := printJSON(cmd.ErrOrStderr(), a.grid.Window()); err != nil {
				return err
			}
		}
		return printJSON(cmd.OutOrStdout(), page)
	})
}

// readPage reads rows through the grid provider the way a scrolling view
// would, one index at a time.
func readPage(cmd *cobra.Command, a *app, weekID int64, offset, limit int) ([]record.Record, error) {
	total, err := a.grid.RowCount(cmd.Context(), weekID)
	if err != nil {
		return nil, err
	}
	end := min(offset+limit, total)
	page := make([]record.Record, 0, max(end-offset, 0))
	for i := offset; i < end; i++ {
		rec, err := a.grid.RowAt(cmd.Context(), weekID, i)
		if err != nil {
			return nil, err
		}
		page = append(page, rec)
	}
	return page, nil
}

func runRecordSet(cmd *cobra.Command, args []string) error {
	id, err := parseID("record id", args[0])
	if err != nil {
		return err
	}
	changes := setFlags.changes(cmd.Flags())
	return withApp(func(a *app) error {
		ok, err := a.data.UpdateRecord(cmd.Context(), id, changes)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("record %d: %w", id, record.ErrRecordNotFound)
		}
		rec, err := a.data.GetRecord(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rec)
	})
}

func runRecordRemove(cmd *cobra.Command, args []string) error {
	id, err := parseID("record id", args[0])
	if err != nil {
		return err
	}
	return withApp(func(a *app) error {
		ok, err := a.data.DeleteRecord(cmd.Context(), id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("record %d: %w", id, record.ErrRecordNotFound)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted record %d\n", id)
		return nil
	})
}
