package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/sppark/pkg/console"
	"github.com/gwillem/sppark/pkg/robot"
	"github.com/gwillem/sppark/pkg/session"
)

type PointsCommand struct {
	Args struct {
		List string `positional-arg-name:"list" description:"outbound, return or program (default: all)"`
	} `positional-args:"yes"`
	Delete string `long:"delete" description:"Delete the point with this ID from the list"`
	Clear  bool   `long:"clear" description:"Remove every point from the list"`
}

func (c *PointsCommand) Execute(args []string) error {
	return withSession(func(ctrl *console.Controller) error {
		sess := ctrl.Session()
		lists := session.Lists
		if c.Args.List != "" {
			list, err := session.ParseListName(c.Args.List)
			if err != nil {
				return err
			}
			lists = []session.ListName{list}
		}

		if c.Delete != "" || c.Clear {
			if len(lists) != 1 {
				return fmt.Errorf("--delete and --clear need a list")
			}
			if c.Clear {
				sess.ClearList(lists[0])
			} else if err := sess.DeletePoint(lists[0], c.Delete); err != nil {
				return err
			}
		}

		for _, list := range lists {
			fmt.Println(headerStyle.Render(list.Label()))
			fmt.Println(renderPoints(list, sess.Points(list)))
			fmt.Println()
		}
		return nil
	})
}

func renderPoints(list session.ListName, points []robot.Point) string {
	if len(points) == 0 {
		return dimStyle.Render("  (empty)")
	}

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableNameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)

	headers := []string{"#", "Name", "ID"}
	for _, ch := range robot.AllChannels() {
		headers = append(headers, ch.String())
	}

	rows := make([][]string, 0, len(points))
	for i, p := range points {
		id := p.ID
		if len(id) > 8 {
			id = id[:8]
		}
		row := []string{strconv.Itoa(i + 1), p.Label(list.Label(), i), id}
		for _, deg := range p.Posture {
			row = append(row, strconv.Itoa(deg))
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			if col == 1 {
				return tableNameStyle
			}
			return tableCellStyle
		})
	return t.Render()
}
