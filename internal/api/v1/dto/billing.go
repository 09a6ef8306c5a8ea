package dto

type CheckoutRequestDTO struct {
	Plan string `json:"plan" validate:"required,oneof=max beast ultimate"`
}

type CheckoutResponseDTO struct {
	URL string `json:"url"`
}

type PortalResponseDTO struct {
	URL string `json:"url"`
}
