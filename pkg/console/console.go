package console

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"

	"github.com/diillson/cloud-plan-estimator/internal/shared/types"
)

// Console é uma implementação do ConsoleInterface sobre o pterm. Spinners and
// progress bars are only drawn when out is a terminal; redirected output
// gets the plain messages and the table.
type Console struct {
	out         io.Writer
	interactive bool
}

// NewConsole writes to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout, interactive: isTerminal(os.Stdout)}
}

// NewConsoleTo writes to w without any animation.
func NewConsoleTo(w io.Writer) *Console {
	return &Console{out: w}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Print imprime no console.
func (c *Console) Print(a ...interface{}) {
	fmt.Fprint(c.out, a...)
}

func (c *Console) LogInfo(format string, a ...interface{}) {
	pterm.Info.WithWriter(c.out).Printfln(format, a...)
}

func (c *Console) LogWarning(format string, a ...interface{}) {
	pterm.Warning.WithWriter(c.out).Printfln(format, a...)
}

func (c *Console) LogError(format string, a ...interface{}) {
	pterm.Error.WithWriter(c.out).Printfln(format, a...)
}

func (c *Console) LogSuccess(format string, a ...interface{}) {
	pterm.Success.WithWriter(c.out).Printfln(format, a...)
}

// statusHandle é uma implementação do StatusHandle.
type statusHandle struct {
	spinner *pterm.SpinnerPrinter
}

// Status cria um spinner de status com a mensagem especificada.
func (c *Console) Status(message string) types.StatusHandle {
	if !c.interactive {
		return &statusHandle{}
	}
	spinner, _ := pterm.DefaultSpinner.WithWriter(c.out).Start(message)
	return &statusHandle{spinner: spinner}
}

func (h *statusHandle) Update(message string) {
	if h.spinner != nil {
		h.spinner.UpdateText(message)
	}
}

func (h *statusHandle) Stop() {
	if h.spinner != nil {
		_ = h.spinner.Stop()
	}
}

// progressHandle é uma implementação do ProgressHandle. Scope workers call
// Increment concurrently.
type progressHandle struct {
	mu    sync.Mutex
	bar   *pterm.ProgressbarPrinter
	done  int
	total int
}

func (c *Console) ProgressWithTotal(total int) types.ProgressHandle {
	h := &progressHandle{total: total}
	if !c.interactive {
		return h
	}
	h.bar, _ = pterm.DefaultProgressbar.
		WithWriter(c.out).
		WithTotal(total).
		WithTitle("Estimating scope units").
		WithShowElapsedTime(true).
		WithShowCount(true).
		WithRemoveWhenDone(false). // Manter a barra após concluir
		Start()
	return h
}

func (h *progressHandle) Increment() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.done++
	if h.bar != nil && h.done <= h.total {
		h.bar.Increment()
	}
}

func (h *progressHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bar != nil {
		_, _ = h.bar.Stop()
	}
}

// Table é uma implementação do TableInterface.
type Table struct {
	columns []string
	rows    [][]string
}

func (c *Console) CreateTable() types.TableInterface {
	return &Table{}
}

func (t *Table) AddColumn(name string, options ...interface{}) {
	t.columns = append(t.columns, name)
}

// AddRow pads or truncates cells to the column count.
func (t *Table) AddRow(cells ...interface{}) {
	row := make([]string, len(t.columns))
	for i := range row {
		if i < len(cells) {
			row[i] = fmt.Sprint(cells[i])
		}
	}
	t.rows = append(t.rows, row)
}

// Render renderiza a tabela como uma string.
func (t *Table) Render() string {
	tableData := pterm.TableData{t.columns}
	tableData = append(tableData, t.rows...)

	rendered, err := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithRowSeparator("-").
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithData(tableData).
		Srender()
	if err != nil {
		return fmt.Sprintf("could not render table: %v\n", err)
	}
	return rendered + "\n"
}
