package service

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/ticketboard/ticketboard/internal/model"
)

// ExportHeader is the header row of the CSV export.
var ExportHeader = []string{"#", "Name", "Description", "Status", "Type", "Assignee", "Last Updated", "Updated By"}

const (
	bom   = "\xEF\xBB\xBF"
	blank = "—"
)

// ExportFilename returns the name of the CSV export of the board at the given date.
func ExportFilename(board *model.Board, now time.Time) string {
	name := strings.NewReplacer(" ", "_", "/", "-").Replace(board.Name)
	return name + "_" + now.Format("2006-01-02") + ".csv"
}

// Export writes all the items of the board as CSV ordered by number.
// The output starts with a UTF-8 BOM so spreadsheets detect the encoding.
func (s *BoardService) Export(w io.Writer, board *model.Board) error {
	items, groups, users, err := s.tableData(board)
	if err != nil {
		return err
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Number < items[j].Number
	})

	if _, err = io.WriteString(w, bom); err != nil {
		return errors.Wrap(err, "could not write export")
	}

	out := csv.NewWriter(w)
	if err = out.Write(ExportHeader); err != nil {
		return errors.Wrap(err, "could not write export")
	}

	for _, item := range items {
		if err = out.Write(exportRow(item, groups, users)); err != nil {
			return errors.Wrap(err, "could not write export")
		}
	}

	out.Flush()
	return errors.Wrap(out.Error(), "could not write export")
}

func exportRow(item *model.Item, groups map[string]*model.Group, users map[string]*model.User) []string {
	status := blank
	if g, ok := groups[item.GroupID]; ok {
		status = g.Name
	}

	kind := blank
	if item.ItemType != "" {
		kind = strings.ToUpper(item.ItemType[:1]) + item.ItemType[1:]
	}

	assignee := blank
	if u, ok := users[item.AssigneeID]; ok && item.AssigneeID != "" {
		assignee = u.Name
	}

	updated := blank
	if item.UpdatedAt != nil {
		updated = item.UpdatedAt.Format("Jan 02, 2006 15:04")
	}

	updatedBy := blank
	if u, ok := users[item.UpdatedBy]; ok {
		updatedBy = u.Name
	} else if u, ok := users[item.CreatedBy]; ok {
		updatedBy = u.Name
	}

	return []string{
		strconv.Itoa(item.Number),
		item.Name,
		item.Description,
		status,
		kind,
		assignee,
		updated,
		updatedBy,
	}
}
