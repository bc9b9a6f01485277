package requests

// Merge builds the unified view from the four request tables.
//
// Rows of the requests table come first and are enriched by the detail row
// sharing their id. Detail rows without a requests row are kept as
// standalone entries: a time_off row spanning a single day is an absence,
// otherwise time off. Every id appears once; the first occurrence wins.
// Employee name, factory and group are joined from the directory.
func Merge(s Snapshot) []Request {
	timeOff := make(map[string]TimeOffRow, len(s.TimeOff))
	for _, row := range s.TimeOff {
		timeOff[row.ID] = row
	}
	early := make(map[string]EarlyDepartureRow, len(s.EarlyDepartures))
	for _, row := range s.EarlyDepartures {
		early[row.ID] = row
	}
	late := make(map[string]LatenessRow, len(s.Lateness))
	for _, row := range s.Lateness {
		late[row.ID] = row
	}
	employees := make(map[string]EmployeeRef, len(s.Employees))
	for _, emp := range s.Employees {
		employees[emp.ID] = emp
	}

	seen := make(map[string]struct{}, len(s.Requests)+len(s.TimeOff)+len(s.EarlyDepartures)+len(s.Lateness))
	out := make([]Request, 0, len(s.Requests)+len(s.TimeOff)+len(s.EarlyDepartures)+len(s.Lateness))
	add := func(req Request) {
		if _, dup := seen[req.ID]; dup {
			return
		}
		seen[req.ID] = struct{}{}
		if req.EndDate.IsZero() || req.EndDate.Before(req.StartDate) {
			req.EndDate = req.StartDate
		}
		if emp, ok := employees[req.EmployeeID]; ok {
			req.EmployeeName = emp.Name
			req.FactoryID = emp.FactoryID
			req.GroupID = emp.GroupID
		}
		out = append(out, req)
	}

	for _, row := range s.Requests {
		req := Request{
			ID:           row.ID,
			Type:         row.Type,
			Status:       row.Status,
			EmployeeID:   row.EmployeeID,
			StartDate:    row.StartDate,
			EndDate:      row.EndDate,
			Reason:       row.Reason,
			SubstituteID: row.SubstituteID,
			DecidedBy:    row.DecidedBy,
			DecidedAt:    row.DecidedAt,
			DecisionNote: row.DecisionNote,
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.UpdatedAt,
			Source:       SourceRequests,
		}
		switch row.Type {
		case TypeTimeOff, TypeAbsence:
			if d, ok := timeOff[row.ID]; ok {
				req.StartDate, req.EndDate = d.StartDate, d.EndDate
			}
		case TypeEarlyDeparture:
			if d, ok := early[row.ID]; ok {
				req.StartDate, req.EndDate, req.Time = d.Date, d.Date, d.DepartureTime
			}
		case TypeLateness:
			if d, ok := late[row.ID]; ok {
				req.StartDate, req.EndDate, req.Time = d.Date, d.Date, d.ArrivalTime
			}
		}
		add(req)
	}

	for _, row := range s.TimeOff {
		typ := TypeTimeOff
		if row.StartDate.Equal(row.EndDate) {
			typ = TypeAbsence
		}
		add(Request{
			ID:         row.ID,
			Type:       typ,
			Status:     row.Status,
			EmployeeID: row.EmployeeID,
			StartDate:  row.StartDate,
			EndDate:    row.EndDate,
			Reason:     row.Reason,
			CreatedAt:  row.CreatedAt,
			UpdatedAt:  row.CreatedAt,
			Source:     SourceTimeOff,
		})
	}
	for _, row := range s.EarlyDepartures {
		add(Request{
			ID:         row.ID,
			Type:       TypeEarlyDeparture,
			Status:     row.Status,
			EmployeeID: row.EmployeeID,
			StartDate:  row.Date,
			EndDate:    row.Date,
			Time:       row.DepartureTime,
			Reason:     row.Reason,
			CreatedAt:  row.CreatedAt,
			UpdatedAt:  row.CreatedAt,
			Source:     SourceEarlyDepartures,
		})
	}
	for _, row := range s.Lateness {
		add(Request{
			ID:         row.ID,
			Type:       TypeLateness,
			Status:     row.Status,
			EmployeeID: row.EmployeeID,
			StartDate:  row.Date,
			EndDate:    row.Date,
			Time:       row.ArrivalTime,
			Reason:     row.Reason,
			CreatedAt:  row.CreatedAt,
			UpdatedAt:  row.CreatedAt,
			Source:     SourceLateness,
		})
	}
	return out
}
