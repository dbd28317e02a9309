package handlers

import (
	"encoding/base64"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		Role:         string(user.Role),
		Phone:        user.Phone,
		Picture:      user.Picture,
		DepartmentID: user.DepartmentID,
		Status:       string(user.Status),
		AuthProvider: string(user.AuthProvider),
		CreatedAt:    user.CreatedAt,
	}
}

func authResponse(result *service.AuthResult) dto.AuthResponse {
	return dto.AuthResponse{
		User:         userResponse(result.User),
		Token:        result.Token,
		ExpiresAt:    result.ExpiresAt,
		SessionToken: result.SessionToken,
	}
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:                 ticket.ID,
		UserID:             ticket.RequesterID,
		UserName:           ticket.RequesterName,
		Title:              ticket.Title,
		Description:        ticket.Description,
		CategoryID:         ticket.CategoryID,
		CategoryName:       ticket.CategoryName,
		EquipmentID:        ticket.EquipmentID,
		Status:             string(ticket.Status),
		Priority:           string(ticket.Priority),
		TechnicianID:       ticket.TechnicianID,
		TechnicianName:     ticket.TechnicianName,
		CreatedAt:          ticket.CreatedAt,
		UpdatedAt:          ticket.UpdatedAt,
		AssignedAt:         ticket.AssignedAt,
		ClosedAt:           ticket.ClosedAt,
		LastPriorityChange: ticket.PriorityChangedAt,
	}
}

func ticketList(tickets []domain.Ticket) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return items
}

func ticketDetail(detail *service.TicketDetail) dto.TicketDetailResponse {
	resp := dto.TicketDetailResponse{
		TicketResponse: ticketResponse(&detail.Ticket),
		Attachments:    make([]dto.AttachmentResponse, 0, len(detail.Attachments)),
		Comments:       make([]dto.CommentResponse, 0, len(detail.Comments)),
		History:        make([]dto.HistoryEntryResponse, 0, len(detail.History)),
	}
	if detail.Equipment != nil {
		eq := equipmentResponse(detail.Equipment)
		resp.Equipment = &eq
	}
	for _, a := range detail.Attachments {
		resp.Attachments = append(resp.Attachments, dto.AttachmentResponse{
			ID:          a.ID,
			TicketID:    a.TicketID,
			Filename:    a.Filename,
			ContentType: a.ContentType,
			SizeBytes:   a.SizeBytes,
			Checksum:    a.Checksum,
			FileData:    base64.StdEncoding.EncodeToString(a.Data),
			DataURL:     service.EncodeDataURL(a),
			UploadedAt:  a.UploadedAt,
		})
	}
	for i := range detail.Comments {
		resp.Comments = append(resp.Comments, commentResponse(&detail.Comments[i]))
	}
	for _, h := range detail.History {
		resp.History = append(resp.History, dto.HistoryEntryResponse{
			ID:         h.ID,
			TicketID:   h.TicketID,
			UserID:     h.ActorID,
			UserName:   h.ActorName,
			Action:     h.Description,
			ActionType: string(h.Action),
			OldValue:   h.OldValue,
			NewValue:   h.NewValue,
			Timestamp:  h.CreatedAt,
		})
	}
	return resp
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:        comment.ID,
		TicketID:  comment.TicketID,
		UserID:    comment.UserID,
		UserName:  comment.UserName,
		Comment:   comment.Body,
		CreatedAt: comment.CreatedAt,
	}
}

func categoryResponse(category *domain.Category) dto.CategoryResponse {
	resp := dto.CategoryResponse{
		ID:          category.ID,
		Name:        category.Name,
		Description: category.Description,
		CreatedAt:   category.CreatedAt,
	}
	if category.DefaultPriority != nil {
		p := string(*category.DefaultPriority)
		resp.DefaultPriority = &p
	}
	return resp
}

func equipmentResponse(equipment *domain.Equipment) dto.EquipmentResponse {
	return dto.EquipmentResponse{
		ID:           equipment.ID,
		Name:         equipment.Name,
		Type:         equipment.Type,
		Brand:        equipment.Brand,
		Model:        equipment.Model,
		SerialNumber: equipment.SerialNumber,
		OwnerID:      equipment.OwnerID,
		DepartmentID: equipment.DepartmentID,
		CreatedAt:    equipment.CreatedAt,
	}
}
