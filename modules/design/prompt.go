package design

import (
	"fmt"
	"strings"

	"visionary-design-server/modules/common/model"
)

// 카테고리별 디자인 지침
var typeDirections = map[model.DesignType]string{
	model.DesignTypeLogo: "Create a professional logo design. Keep the mark simple, scalable and memorable, " +
		"centered on a clean background with a restrained color palette.",
	model.DesignTypeWebUI: "Create a high-fidelity web UI mockup. Use a clear layout grid, readable typography, " +
		"consistent spacing and realistic interface components.",
	model.DesignTypeSocialPost: "Create an eye-catching social media post. Use bold composition, strong focal point " +
		"and colors that stand out in a feed.",
	model.DesignTypeInterior: "Create an interior design concept. Render a photorealistic space with coherent " +
		"materials, lighting and furniture arrangement.",
	model.DesignTypeArtistic: "Create an artistic re-imagining. Reinterpret the subject freely with an expressive, " +
		"painterly style while keeping it recognizable.",
}

// BuildPrompt - 참조 이미지 수, 카테고리, 사용자 지시문으로 프롬프트 구성
func BuildPrompt(designType model.DesignType, instruction string, imageCount int) string {
	if !designType.IsValid() {
		designType = model.DefaultDesignType
	}
	option, _ := designType.Option()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are a senior designer. Category: %s.\n", designType))
	sb.WriteString(typeDirections[designType])
	sb.WriteString("\n\n")

	if imageCount == 1 {
		sb.WriteString("Use the attached reference image as the visual source: draw on its subject, colors and style.\n")
	} else {
		sb.WriteString(fmt.Sprintf("Use the %d attached reference images as visual sources: combine their subjects, colors and styles into one design.\n", imageCount))
	}

	if instruction = strings.TrimSpace(instruction); instruction != "" {
		sb.WriteString("\nAdditional instructions from the client:\n")
		sb.WriteString(instruction)
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("\nOutput a single finished design with a %s aspect ratio, ", option.AspectRatio))
	sb.WriteString("followed by one short sentence describing the design.")
	return sb.String()
}
